package rundb

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

// Status describes the status of a run or of one of its cells.
type Status string

const (
	// StatusUnknown is the default status
	StatusUnknown Status = ""
	// StatusStarted is set when the sweep has started running.
	StatusStarted Status = "started"
	// StatusFinished is set when the sweep (or cell) has been persisted.
	StatusFinished Status = "finished"
	// StatusError is set when the sweep has errored out before it could successfully finish.
	StatusError Status = "error"
)

const (
	runPrefix  = "run/"
	cellPrefix = "cell/"
)

// RunInfo describes one sweep invocation.
type RunInfo struct {
	ID        string
	Name      string
	CreatedAt time.Time

	// Params represents the parameters used to launch the sweep.
	Params  map[string]interface{}
	Workers int
	Cells   int

	Error         string
	Status        Status
	StatusUpdated time.Time
}

// CellStatus records the outcome of one grid cell within a run.
type CellStatus struct {
	Index    int
	Name     string
	Rows     int
	Path     string
	Duration time.Duration
	Status   Status
	Error    string
	Updated  time.Time
}

// DB is a ledger of sweep runs backed by leveldb.
type DB struct {
	db *leveldb.DB
}

// Open opens (creating if needed) the ledger at path. An empty path gives an
// in-memory ledger.
func Open(path string) (*DB, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, &opt.Options{OpenFilesCacheCapacity: 16})
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error opening run ledger %s", path)
	}
	return &DB{db: db}, nil
}

// Close releases the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// NewRun registers a started run with a fresh id.
func (d *DB) NewRun(name string, params map[string]interface{}, workers, cells int) (RunInfo, error) {
	now := time.Now().UTC()
	info := RunInfo{
		ID:            uuid.New().String(),
		Name:          name,
		CreatedAt:     now,
		Params:        params,
		Workers:       workers,
		Cells:         cells,
		Status:        StatusStarted,
		StatusUpdated: now,
	}
	return info, d.put(runPrefix+info.ID, info)
}

// SetStatus updates the status of a run; runErr is recorded when non-nil.
func (d *DB) SetStatus(id string, status Status, runErr error) error {
	info, err := d.Run(id)
	if err != nil {
		return err
	}
	info.Status = status
	info.StatusUpdated = time.Now().UTC()
	if runErr != nil {
		info.Error = runErr.Error()
	}
	return d.put(runPrefix+id, info)
}

// Run fetches the run with the given id.
func (d *DB) Run(id string) (RunInfo, error) {
	var info RunInfo
	buf, err := d.db.Get([]byte(runPrefix+id), nil)
	if err == leveldb.ErrNotFound {
		return RunInfo{}, errors.Errorf("unknown run %s", id)
	}
	if err != nil {
		return RunInfo{}, err
	}
	if err := json.Unmarshal(buf, &info); err != nil {
		return RunInfo{}, errors.Wrapf(err, "error decoding run %s", id)
	}
	return info, nil
}

// Runs lists all runs, oldest first.
func (d *DB) Runs() ([]RunInfo, error) {
	var runs []RunInfo
	it := d.db.NewIterator(util.BytesPrefix([]byte(runPrefix)), nil)
	defer it.Release()
	for it.Next() {
		var info RunInfo
		if err := json.Unmarshal(it.Value(), &info); err != nil {
			return nil, errors.Wrapf(err, "error decoding %s", it.Key())
		}
		runs = append(runs, info)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

// Latest returns the most recently created run.
func (d *DB) Latest() (RunInfo, error) {
	runs, err := d.Runs()
	if err != nil {
		return RunInfo{}, err
	}
	if len(runs) == 0 {
		return RunInfo{}, errors.New("no runs recorded")
	}
	return runs[len(runs)-1], nil
}

// RecordCell stores the status of one cell of run id.
func (d *DB) RecordCell(id string, cell CellStatus) error {
	if cell.Updated.IsZero() {
		cell.Updated = time.Now().UTC()
	}
	return d.put(cellKey(id, cell.Index), cell)
}

// Cells returns the recorded cells of run id in grid order.
func (d *DB) Cells(id string) ([]CellStatus, error) {
	var cells []CellStatus
	it := d.db.NewIterator(util.BytesPrefix([]byte(cellPrefix+id+"/")), nil)
	defer it.Release()
	for it.Next() {
		var cell CellStatus
		if err := json.Unmarshal(it.Value(), &cell); err != nil {
			return nil, errors.Wrapf(err, "error decoding %s", it.Key())
		}
		cells = append(cells, cell)
	}
	return cells, it.Error()
}

func (d *DB) put(key string, v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return d.db.Put([]byte(key), buf, nil)
}

// zero padded so that iteration order matches grid order
func cellKey(id string, index int) string {
	return fmt.Sprintf("%s%s/%06d", cellPrefix, id, index)
}
