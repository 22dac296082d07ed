// Copyright 2025 Groundline

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gdc

import (
	"github.com/groundline/groundline/table"
	"github.com/spf13/cast"
	"github.com/stockparfait/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Value is an arbitrary value of a table cell.
type Value interface{}

// Result is a fully assembled table: the effective ordered column list and
// the rows of all chunks, concatenated in ascending skip order. Row values
// are positional and align with Columns.
type Result struct {
	Columns []string
	Rows    [][]Value
	Total   int // total row count reported by the server
}

// newResult creates an empty result pre-sized for the expected row count.
func newResult(columns []string, total int) *Result {
	return &Result{
		Columns: columns,
		Rows:    make([][]Value, 0, total),
		Total:   total,
	}
}

// NumRows returns the number of assembled rows.
func (r *Result) NumRows() int { return len(r.Rows) }

// Empty tests whether the query matched no rows.
func (r *Result) Empty() bool { return len(r.Rows) == 0 }

// columnIndex returns the position of the named column, or -1.
func (r *Result) columnIndex(column string) int {
	for i, c := range r.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the named cell of the given row. The second value is false
// when the column does not exist or the row is out of range.
func (r *Result) Value(row int, column string) (Value, bool) {
	i := r.columnIndex(column)
	if i < 0 || row < 0 || row >= len(r.Rows) {
		return nil, false
	}
	return r.Rows[row][i], true
}

// String returns the named cell of the given row as a string. Missing cells
// render as the empty string.
func (r *Result) String(row int, column string) string {
	v, ok := r.Value(row, column)
	if !ok {
		return ""
	}
	return cast.ToString(v)
}

// Float64 returns the named cell of the given row as a number.
func (r *Result) Float64(row int, column string) (float64, error) {
	v, ok := r.Value(row, column)
	if !ok {
		return 0.0, errors.Reason("no cell at row %d, column '%s'", row, column)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0.0, errors.Annotate(err,
			"cell at row %d, column '%s' is not a number", row, column)
	}
	return f, nil
}

// Table converts the result into a table.Table for CSV or text output. Cell
// values are stringified; nil cells render as empty strings.
func (r *Result) Table() *table.Table {
	tbl := table.NewTable(r.Columns...)
	for _, row := range r.Rows {
		rec := make(table.Record, len(row))
		for i, v := range row {
			if v == nil {
				continue
			}
			rec[i] = cast.ToString(v)
		}
		tbl.AddRow(rec)
	}
	return tbl
}

// ColumnSummary holds basic statistics of the numeric cells of one column.
type ColumnSummary struct {
	Column string
	Count  int // number of numeric cells
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Describe computes summaries of every column with at least one numeric
// cell, in column order. Non-numeric and nil cells are skipped.
func (r *Result) Describe() []ColumnSummary {
	res := []ColumnSummary{}
	for i, column := range r.Columns {
		xs := []float64{}
		for _, row := range r.Rows {
			if row[i] == nil {
				continue
			}
			f, err := cast.ToFloat64E(row[i])
			if err != nil {
				continue
			}
			xs = append(xs, f)
		}
		if len(xs) == 0 {
			continue
		}
		s := ColumnSummary{
			Column: column,
			Count:  len(xs),
			Mean:   stat.Mean(xs, nil),
			Min:    floats.Min(xs),
			Max:    floats.Max(xs),
		}
		if len(xs) > 1 {
			s.StdDev = stat.StdDev(xs, nil)
		}
		res = append(res, s)
	}
	return res
}
