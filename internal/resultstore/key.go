package resultstore

import (
	"fmt"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Key identifies one persisted grid cell.
type Key struct {
	Length       float64
	AngleDegrees int
}

// KeyFor builds the key of the cell with trigger length and angle (in radians). The
// angle is rounded to the nearest whole degree.
func KeyFor(length, angle float64) Key {
	return Key{Length: length, AngleDegrees: int(math.Round(angle / math.Pi * 180))}
}

// Name is the extension-less file name: length_<length>_angle_<degrees>.
func (k Key) Name() string {
	return fmt.Sprintf("length_%s_angle_%d", strconv.FormatFloat(k.Length, 'f', -1, 64), k.AngleDegrees)
}

func (k Key) String() string {
	return k.Name()
}

// ParseKey recovers a key from a file name or path; any extension is ignored.
func ParseKey(name string) (Key, bool) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if !strings.HasPrefix(base, "length_") {
		return Key{}, false
	}
	base = strings.TrimPrefix(base, "length_")
	idx := strings.Index(base, "_angle_")
	if idx < 0 {
		return Key{}, false
	}
	length, err := strconv.ParseFloat(base[:idx], 64)
	if err != nil {
		return Key{}, false
	}
	angle := base[idx+len("_angle_"):]
	if dot := strings.IndexByte(angle, '.'); dot >= 0 {
		angle = angle[:dot]
	}
	deg, err := strconv.Atoi(angle)
	if err != nil {
		return Key{}, false
	}
	return Key{Length: length, AngleDegrees: deg}, true
}

// SortKeys orders keys by length, then angle.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Length != keys[j].Length {
			return keys[i].Length < keys[j].Length
		}
		return keys[i].AngleDegrees < keys[j].AngleDegrees
	})
}
