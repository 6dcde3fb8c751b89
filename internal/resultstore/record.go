package resultstore

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Columns is the persisted column order of each row.
var Columns = [3]string{"r_poi", "r_cl", "r_bd"}

// Record is the logical content of a result file: the aggregated replicate matrix of
// one grid cell, one row per trial.
type Record struct {
	Err [][3]float64 `json:"err"`
}

// Column returns column j of the matrix.
func (r Record) Column(j int) []float64 {
	col := make([]float64, len(r.Err))
	for i, row := range r.Err {
		col[i] = row[j]
	}
	return col
}

// EncodeMsg implements msgp.Encodable
func (r *Record) EncodeMsg(en *msgp.Writer) error {
	if err := en.WriteMapHeader(1); err != nil {
		return err
	}
	if err := en.WriteString("err"); err != nil {
		return err
	}
	if err := en.WriteArrayHeader(uint32(len(r.Err))); err != nil {
		return err
	}
	for _, row := range r.Err {
		if err := en.WriteArrayHeader(uint32(len(row))); err != nil {
			return err
		}
		for _, v := range row {
			if err := en.WriteFloat64(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeMsg implements msgp.Decodable
func (r *Record) DecodeMsg(dc *msgp.Reader) error {
	fields, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}
	for ; fields > 0; fields-- {
		field, err := dc.ReadString()
		if err != nil {
			return err
		}
		if field != "err" {
			if err := dc.Skip(); err != nil {
				return err
			}
			continue
		}

		rows, err := dc.ReadArrayHeader()
		if err != nil {
			return err
		}
		r.Err = make([][3]float64, rows)
		for i := range r.Err {
			cols, err := dc.ReadArrayHeader()
			if err != nil {
				return err
			}
			if cols != 3 {
				return fmt.Errorf("row %d has %d columns, expected 3", i, cols)
			}
			for j := range r.Err[i] {
				if r.Err[i][j], err = dc.ReadFloat64(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (r *Record) Msgsize() int {
	return msgp.MapHeaderSize + msgp.StringPrefixSize + len("err") + msgp.ArrayHeaderSize +
		len(r.Err)*(msgp.ArrayHeaderSize+3*msgp.Float64Size)
}
