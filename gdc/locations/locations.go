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

// Package locations implements a typed row API for the GDC LocationDetails
// table: boreholes, trial pits and other exploratory locations, optionally
// with their WKT shapes.
package locations

import (
	"context"

	"github.com/groundline/groundline/gdc"
	"github.com/spf13/cast"
	"github.com/stockparfait/errors"
)

// TableName is the name of the locations table on the server.
const TableName = "LocationDetails"

// Column names of the LocationDetails table used by Location. The table
// carries more columns; these are the ones this API loads.
const (
	ColLocationID   = "LocationID"
	ColLocationType = "LocationType"
	ColGroundLevel  = "GroundLevel"
	ColFinalDepth   = "FinalDepth"
	ColLatitude     = "Latitude"
	ColLongitude    = "Longitude"
)

// Columns returns the ordered column list requested for locations. The
// geometry column, when requested, is appended by the core client.
func Columns() []string {
	return []string{
		ColLocationID,
		ColLocationType,
		ColGroundLevel,
		ColFinalDepth,
		ColLatitude,
		ColLongitude,
	}
}

// Location is a row in the LocationDetails table.
type Location struct {
	ID          string  // vendor-unique location identifier
	Type        string  // e.g. "Borehole", "TrialPit"
	GroundLevel float64 // elevation of the ground surface, in meters
	FinalDepth  float64 // total drilled depth, in meters
	Latitude    float64
	Longitude   float64
	WKT         string // geometry shape, empty unless requested
}

func value2str(v gdc.Value) (string, error) {
	if v == nil {
		return "", nil
	}
	return cast.ToStringE(v)
}

func value2num(v gdc.Value) (float64, error) {
	if v == nil {
		return 0.0, nil
	}
	return cast.ToFloat64E(v)
}

// Load sets the Location from a positional row based on a column map {column
// name -> position}, as produced by the effective column list of a result.
func (r *Location) Load(row []gdc.Value, columnMap map[string]int) error {
	at := func(column string) (gdc.Value, error) {
		i, ok := columnMap[column]
		if !ok {
			return nil, errors.Reason("column '%s' is not in the result", column)
		}
		if i < 0 || i >= len(row) {
			return nil, errors.Reason("column '%s' maps to position %d of a %d-wide row",
				column, i, len(row))
		}
		return row[i], nil
	}
	str := func(column string) (string, error) {
		v, err := at(column)
		if err != nil {
			return "", err
		}
		return value2str(v)
	}
	num := func(column string) (float64, error) {
		v, err := at(column)
		if err != nil {
			return 0.0, err
		}
		return value2num(v)
	}

	var err error
	if r.ID, err = str(ColLocationID); err != nil {
		return errors.Annotate(err, "LocationID should be a string")
	}
	if r.Type, err = str(ColLocationType); err != nil {
		return errors.Annotate(err, "LocationType should be a string")
	}
	if r.GroundLevel, err = num(ColGroundLevel); err != nil {
		return errors.Annotate(err, "GroundLevel should be a number")
	}
	if r.FinalDepth, err = num(ColFinalDepth); err != nil {
		return errors.Annotate(err, "FinalDepth should be a number")
	}
	if r.Latitude, err = num(ColLatitude); err != nil {
		return errors.Annotate(err, "Latitude should be a number")
	}
	if r.Longitude, err = num(ColLongitude); err != nil {
		return errors.Annotate(err, "Longitude should be a number")
	}
	if i, ok := columnMap[gdc.GeometryColumn]; ok && i < len(row) {
		if r.WKT, err = value2str(row[i]); err != nil {
			return errors.Annotate(err, "wkt should be a string")
		}
	}
	return nil
}

// columnMap builds the {column name -> position} map of a result.
func columnMap(res *gdc.Result) map[string]int {
	m := make(map[string]int)
	for i, c := range res.Columns {
		m[c] = i
	}
	return m
}

// Fetch retrieves locations matching the filters and converts each row to a
// Location. With geometry, every location carries its WKT shape.
func Fetch(ctx context.Context, filters gdc.FilterSet, geometry bool) ([]Location, error) {
	res, err := gdc.FetchTable(ctx, TableName, filters, gdc.DefaultChunkSize, Columns(), geometry)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch %s", TableName)
	}
	m := columnMap(res)
	locations := make([]Location, len(res.Rows))
	for i, row := range res.Rows {
		if err := locations[i].Load(row, m); err != nil {
			return nil, errors.Annotate(err, "failed to parse row %d of %s", i, TableName)
		}
	}
	return locations, nil
}
