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
	"github.com/stockparfait/errors"
)

// DefaultChunkSize is the number of rows requested per chunk when the query
// does not set one explicitly.
const DefaultChunkSize = 1000

// Values of the loadType request field. "Specified" is set if and only if
// the query names explicit columns.
const (
	loadTypeAll       = "All"
	loadTypeSpecified = "Specified"
)

// gridPaging is the paging window of a single query: skip rows from the
// start, then return up to take rows.
type gridPaging struct {
	Skip int `json:"skip"`
	Take int `json:"take"`
}

// queryRequest is the JSON payload of the query endpoint. The field names
// and the fixed defaults are part of the wire contract with the server and
// must be reproduced verbatim.
type queryRequest struct {
	Filters             FilterSet  `json:"filters"`
	ExpandLookups       bool       `json:"expandLookups"`
	GetGeometry         bool       `json:"getGeometry"`
	IsLongitudeLatitude bool       `json:"isLongitudeLatitude"`
	GridPaging          gridPaging `json:"gridPaging"`
	ExcludeReplacedData bool       `json:"excludeReplacedData"`
	ReturnEntityID      bool       `json:"returnEntityId"`
	TableName           string     `json:"tableName"`
	LoadType            string     `json:"loadType"`
	Columns             []string   `json:"columns"`
}

// buildRequest validates the filters and assembles the query payload for one
// paging window. Callers guarantee skip >= 0 and take >= 1 by construction.
func buildRequest(filters FilterSet, tableName string, skip, take int, columns []string, getGeometry bool) (*queryRequest, error) {
	if err := filters.Validate(); err != nil {
		return nil, errors.Annotate(err, "cannot build query for table '%s'", tableName)
	}
	loadType := loadTypeAll
	if len(columns) > 0 {
		loadType = loadTypeSpecified
	}
	if filters == nil {
		filters = FilterSet{} // marshals as [], not null
	}
	if columns == nil {
		columns = []string{}
	}
	return &queryRequest{
		Filters:             filters,
		ExpandLookups:       false,
		GetGeometry:         getGeometry,
		IsLongitudeLatitude: true,
		GridPaging:          gridPaging{Skip: skip, Take: take},
		ExcludeReplacedData: true,
		ReturnEntityID:      false,
		TableName:           tableName,
		LoadType:            loadType,
		Columns:             columns,
	}, nil
}

// TableQuery is a builder for a chunked table retrieval.
type TableQuery struct {
	table     string // the name of the table to retrieve
	filters   FilterSet
	columns   []string // if non-empty, retrieve only these columns
	geometry  bool     // request the WKT shape of each row
	chunkSize int
	workers   int // number of concurrent chunk fetches, 1 = sequential
}

// NewTableQuery creates a new query for the given table.
func NewTableQuery(table string) *TableQuery {
	return &TableQuery{table: table, chunkSize: DefaultChunkSize, workers: 1}
}

// Copy creates a deep copy of the query. It is primarily used in its builder
// methods.
func (q *TableQuery) Copy() *TableQuery {
	q2 := *q
	q2.filters = q.filters.Copy()
	if q.columns != nil {
		q2.columns = make([]string, len(q.columns))
		copy(q2.columns, q.columns)
	}
	return &q2
}

// Where adds filters to the query, preserving their order. This and other
// builder methods always create a deep copy of the query, leaving the
// original intact.
func (q *TableQuery) Where(filters ...Filter) *TableQuery {
	q2 := q.Copy()
	q2.filters = append(q2.filters, filters...)
	return q2
}

// Columns constrains the query result to only these columns, in this order.
func (q *TableQuery) Columns(columns ...string) *TableQuery {
	q2 := q.Copy()
	q2.columns = columns
	return q2
}

// Geometry requests the WKT shape of each row, surfaced as the trailing
// "wkt" column of the result.
func (q *TableQuery) Geometry(geometry bool) *TableQuery {
	q2 := q.Copy()
	q2.geometry = geometry
	return q2
}

// ChunkSize sets the number of rows requested per chunk. Fetch fails for
// sizes < 1.
func (q *TableQuery) ChunkSize(size int) *TableQuery {
	q2 := q.Copy()
	q2.chunkSize = size
	return q2
}

// Workers sets the number of concurrent chunk fetches. The default of 1
// fetches chunks sequentially in ascending skip order; higher values fan out
// the fetches but reassemble the pages in the same order.
func (q *TableQuery) Workers(n int) *TableQuery {
	if n < 1 {
		n = 1
	}
	q2 := q.Copy()
	q2.workers = n
	return q2
}
