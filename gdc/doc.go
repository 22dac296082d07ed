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

// Package gdc implements the table API of GroundData Cloud (GDC).
//
// Each GDC table has a schema, which is the ordered list of column names and
// their types as declared by the server. The data endpoint returns each row
// as a positional array of values with no field names, so this column order
// is the sole source of truth for mapping a position to a name. The schema
// can be obtained with FetchSchema(). When geometry is requested, every row
// additionally carries a WKT shape, surfaced as a synthetic trailing "wkt"
// column.
//
// The query endpoint returns at most one window of rows per request,
// addressed by a (skip, take) paging window. TableQuery.Fetch first probes
// the server for the total row count, then pages through the table in
// ascending skip order and assembles all pages into a single Result. A
// retrieval either completes in full or fails; no partial table is ever
// returned.
//
// Typed row APIs for specific GDC tables, such as LocationDetails, are
// implemented in the subpackages.
package gdc
