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
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stockparfait/errors"
)

// GeometryColumn is the name of the synthetic column appended to a column
// list when geometry is requested. The data endpoint returns the WKT shape
// out-of-band, next to the ordinary positional values of each row.
const GeometryColumn = "wkt"

// SchemaField is the schema definition for a single table column.
type SchemaField struct {
	ColumnName string `json:"columnName"`
	DataType   string `json:"dataType"`
}

// Schema is the server-declared, ordered description of a table's columns.
// The order is load-bearing: row values are positional, and this order is
// the only mapping from position to name.
type Schema []SchemaField

// Equal tests two schemas for exact equality, including the field ordering.
func (s Schema) Equal(s2 Schema) bool {
	if len(s) != len(s2) {
		return false
	}
	for i, f := range s {
		if f != s2[i] {
			return false
		}
	}
	return true
}

// MapFields creates a map of {column name -> column index} in the schema.
func (s Schema) MapFields() map[string]int {
	res := make(map[string]int)
	for i, f := range s {
		res[f.ColumnName] = i
	}
	return res
}

// ColumnNames extracts the column names in the server-declared order. When
// includeGeometry is true, the synthetic "wkt" column is appended at the
// end.
func (s Schema) ColumnNames(includeGeometry bool) []string {
	names := make([]string, len(s), len(s)+1)
	for i, f := range s {
		names[i] = f.ColumnName
	}
	if includeGeometry {
		names = append(names, GeometryColumn)
	}
	return names
}

// String prints a string representation of the schema.
func (s Schema) String() string {
	fields := []string{}
	for _, f := range s {
		fields = append(fields, fmt.Sprintf("%s: %s", f.ColumnName, f.DataType))
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

// schemaResponse is the format returned by the schema endpoint.
type schemaResponse struct {
	Columns Schema `json:"columns"`
}

// FetchSchema retrieves the column schema of the given table using the
// Client from the context. The error wraps ErrSchemaFetch.
func FetchSchema(ctx context.Context, table string) (Schema, error) {
	client := GetClient(ctx)
	if client == nil {
		return nil, errors.Reason("FetchSchema: no client in context")
	}
	query := make(url.Values)
	query["tableName"] = []string{table}
	var res schemaResponse
	if err := client.send(ctx, http.MethodGet, "/data/schema", query, nil, &res); err != nil {
		return nil, errors.Annotate(ErrSchemaFetch,
			"failed to fetch schema of table '%s': %s", table, err.Error())
	}
	if len(res.Columns) == 0 {
		return nil, errors.Annotate(ErrSchemaFetch,
			"schema of table '%s' declares no columns", table)
	}
	return res.Columns, nil
}
