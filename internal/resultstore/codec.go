package resultstore

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/tinylib/msgp/msgp"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

// DefaultExt is msgpack without compression.
const DefaultExt = ".msgp"

var (
	encodings   = []string{".msgp", ".json", ".gob"}
	compression = []string{".gz", ".sz"}
)

// splitExt splits an extension such as ".json.gz" into its encoding and compression parts.
func splitExt(ext string) (enc, comp string, err error) {
	enc = ext
	for _, c := range compression {
		if strings.HasSuffix(ext, c) {
			enc, comp = strings.TrimSuffix(ext, c), c
			break
		}
	}
	for _, e := range encodings {
		if enc == e {
			return enc, comp, nil
		}
	}
	return "", "", fmt.Errorf("unsupported result extension %q: want one of %v, optionally followed by one of %v",
		ext, encodings, compression)
}

// ValidateExt checks that ext names a supported encoding and compression.
func ValidateExt(ext string) error {
	_, _, err := splitExt(ext)
	return err
}

// Encode writes rec to w in the format named by ext.
func Encode(w io.Writer, ext string, rec *Record) (err error) {
	enc, comp, err := splitExt(ext)
	if err != nil {
		return err
	}

	switch comp {
	case ".gz":
		gz := gzip.NewWriter(w)
		defer errors.Defer(&err, gz.Close)
		w = gz
	case ".sz":
		sz := snappy.NewBufferedWriter(w)
		defer errors.Defer(&err, sz.Close)
		w = sz
	}

	switch enc {
	case ".msgp":
		return msgp.Encode(w, rec)
	case ".json":
		return json.NewEncoder(w).Encode(rec)
	default:
		return gob.NewEncoder(w).Encode(rec)
	}
}

// Decode reads a record in the format named by ext.
func Decode(r io.Reader, ext string) (Record, error) {
	enc, comp, err := splitExt(ext)
	if err != nil {
		return Record{}, err
	}

	switch comp {
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return Record{}, err
		}
		defer gz.Close()
		r = gz
	case ".sz":
		r = snappy.NewReader(r)
	}

	var rec Record
	switch enc {
	case ".msgp":
		err = msgp.Decode(r, &rec)
	case ".json":
		err = json.NewDecoder(r).Decode(&rec)
	default:
		err = gob.NewDecoder(r).Decode(&rec)
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
