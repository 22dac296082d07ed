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
	"context"
	"encoding/json"
	"net/http"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
)

// queryRow is the wire format of a single row: positional values in the
// schema's column order, plus the out-of-band WKT shape when geometry was
// requested.
type queryRow struct {
	Values []Value `json:"values"`
	WKT    *string `json:"wkt,omitempty"`
}

// queryPage is the response envelope of the query endpoint. Total and Rows
// are pointers to tell a missing field apart from an empty one.
type queryPage struct {
	Total *int       `json:"total"`
	Rows  []queryRow `json:"rows"`
}

// TestQueryPage generates the JSON string in the format returned by the GDC
// query endpoint. When wkts is non-nil it must be as long as data, and each
// row carries its WKT shape out-of-band. For use in tests.
func TestQueryPage(data [][]Value, wkts []string, total int) (string, error) {
	rows := make([]queryRow, len(data))
	for i, values := range data {
		rows[i] = queryRow{Values: values}
		if wkts != nil {
			w := wkts[i]
			rows[i].WKT = &w
		}
	}
	encoded, err := json.Marshal(&queryPage{Total: &total, Rows: rows})
	return string(encoded), err
}

// numChunks returns ceil(total / size) for size >= 1.
func numChunks(total, size int) int {
	return (total + size - 1) / size
}

// fetchPage executes one query request and returns the decoded envelope.
func fetchPage(ctx context.Context, client *Client, req *queryRequest) (*queryPage, error) {
	var page queryPage
	if err := client.send(ctx, http.MethodPost, "/data/query", nil, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// effectiveColumns resolves the ordered column list used to zip positional
// row values into named cells. Explicitly requested columns win; otherwise
// the server schema is fetched. Either way, a trailing "wkt" column is
// appended when geometry is requested.
func (q *TableQuery) effectiveColumns(ctx context.Context) ([]string, error) {
	if len(q.columns) > 0 {
		columns := make([]string, len(q.columns), len(q.columns)+1)
		copy(columns, q.columns)
		if q.geometry {
			columns = append(columns, GeometryColumn)
		}
		return columns, nil
	}
	schema, err := FetchSchema(ctx, q.table)
	if err != nil {
		return nil, errors.Annotate(err, "failed to resolve columns of table '%s'", q.table)
	}
	return schema.ColumnNames(q.geometry), nil
}

// rowValues extracts the positional values of a wire row, appending the WKT
// shape when geometry was requested, and checks the row width against the
// effective column list.
func (q *TableQuery) rowValues(row queryRow, width int) ([]Value, error) {
	if row.Values == nil {
		return nil, errors.Reason("row has no values field")
	}
	values := row.Values
	if q.geometry {
		var wkt Value
		if row.WKT != nil {
			wkt = *row.WKT
		}
		values = append(append(make([]Value, 0, len(values)+1), values...), wkt)
	}
	if len(values) != width {
		return nil, errors.Reason("row has %d values, expected %d", len(values), width)
	}
	return values, nil
}

// fetchChunks retrieves all chunk pages, indexed by chunk. With a single
// worker the chunks are fetched sequentially in ascending skip order. With
// more workers the fetches fan out, but each page lands in its chunk's slot,
// so the assembly order never depends on the completion order. Any failed
// chunk aborts the retrieval.
func (q *TableQuery) fetchChunks(ctx context.Context, client *Client, chunks int) ([]*queryPage, error) {
	fetchOne := func(i int) (*queryPage, error) {
		req, err := buildRequest(q.filters, q.table, i*q.chunkSize, q.chunkSize, q.columns, q.geometry)
		if err != nil {
			return nil, err
		}
		page, err := fetchPage(ctx, client, req)
		if err != nil {
			return nil, errors.Annotate(ErrChunkFetch,
				"failed to fetch chunk %d of %d for table '%s': %s",
				i, chunks, q.table, err.Error())
		}
		logging.Debugf(ctx, "'%s': fetched chunk %d with %d rows", q.table, i, len(page.Rows))
		return page, nil
	}

	pages := make([]*queryPage, chunks)
	if q.workers <= 1 {
		for i := 0; i < chunks; i++ {
			if err := ctx.Err(); err != nil {
				return nil, errors.Annotate(err, "retrieval of table '%s' canceled", q.table)
			}
			page, err := fetchOne(i)
			if err != nil {
				return nil, err
			}
			pages[i] = page
		}
		return pages, nil
	}

	type chunkResult struct {
		index int
		page  *queryPage
		err   error
	}
	indexes := make([]int, chunks)
	for i := range indexes {
		indexes[i] = i
	}
	f := func(i int) chunkResult {
		page, err := fetchOne(i)
		return chunkResult{index: i, page: page, err: err}
	}
	pm := iterator.ParallelMap(ctx, q.workers, iterator.FromSlice(indexes), f)
	defer pm.Close()

	failures := make([]error, chunks)
	iterator.Reduce[chunkResult, int](pm, 0, func(r chunkResult, n int) int {
		if r.err != nil {
			failures[r.index] = r.err
		} else {
			pages[r.index] = r.page
		}
		return n + 1
	})
	for i := 0; i < chunks; i++ {
		if failures[i] != nil {
			return nil, failures[i]
		}
		if pages[i] == nil {
			return nil, errors.Annotate(ErrChunkFetch,
				"chunk %d of %d for table '%s' was never fetched", i, chunks, q.table)
		}
	}
	return pages, nil
}

// Fetch runs the chunked retrieval: it resolves the effective column list,
// probes the server for the total row count, fetches the table chunk by
// chunk, and assembles all pages into a single Result. A query matching no
// rows returns an empty Result and no error. Any mid-retrieval failure
// aborts the whole call; no partial table is ever returned.
func (q *TableQuery) Fetch(ctx context.Context) (*Result, error) {
	client := GetClient(ctx)
	if client == nil {
		return nil, errors.Reason("TableQuery.Fetch: no client in context")
	}
	if q.chunkSize < 1 {
		return nil, errors.Reason("chunk size [%d] must be >= 1", q.chunkSize)
	}
	// Filters are checked before any exchange with the server, including the
	// schema fetch.
	if err := q.filters.Validate(); err != nil {
		return nil, errors.Annotate(err, "cannot fetch table '%s'", q.table)
	}
	columns, err := q.effectiveColumns(ctx)
	if err != nil {
		return nil, err
	}

	// Probe with a minimal window for the total row count; the probe row
	// itself is discarded.
	probeReq, err := buildRequest(q.filters, q.table, 0, 1, q.columns, q.geometry)
	if err != nil {
		return nil, err
	}
	probe, err := fetchPage(ctx, client, probeReq)
	if err != nil {
		return nil, errors.Annotate(err, "failed to probe table '%s' for the row count", q.table)
	}
	if probe.Total == nil {
		return nil, errors.Reason("probe response for table '%s' has no total field", q.table)
	}
	total := *probe.Total

	res := newResult(columns, total)
	if total == 0 {
		logging.Infof(ctx, "table '%s': no rows match the query", q.table)
		return res, nil
	}

	chunks := numChunks(total, q.chunkSize)
	logging.Infof(ctx, "table '%s': fetching %d rows in %d chunks of up to %d",
		q.table, total, chunks, q.chunkSize)
	pages, err := q.fetchChunks(ctx, client, chunks)
	if err != nil {
		return nil, err
	}
	for i, page := range pages {
		if page.Rows == nil {
			return nil, errors.Annotate(ErrChunkFetch,
				"chunk %d of table '%s' has no rows field", i, q.table)
		}
		for _, row := range page.Rows {
			values, err := q.rowValues(row, len(columns))
			if err != nil {
				return nil, errors.Annotate(ErrChunkFetch,
					"malformed row in chunk %d of table '%s': %s", i, q.table, err.Error())
			}
			res.Rows = append(res.Rows, values)
		}
	}
	if len(res.Rows) != total {
		logging.Warningf(ctx, "table '%s': assembled %d rows, server reported %d",
			q.table, len(res.Rows), total)
	}
	return res, nil
}

// FetchTable is the single-call entry point for a chunked table retrieval.
// Explicit columnNames, when non-empty, override the server schema, and the
// schema endpoint is not consulted.
func FetchTable(ctx context.Context, tableName string, filters FilterSet, chunkSize int, columnNames []string, getGeometry bool) (*Result, error) {
	q := NewTableQuery(tableName).Where(filters...).ChunkSize(chunkSize).Geometry(getGeometry)
	if len(columnNames) > 0 {
		q = q.Columns(columnNames...)
	}
	return q.Fetch(ctx)
}
