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

package locations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/groundline/groundline/gdc"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLocations(t *testing.T) {
	t.Parallel()

	Convey("Location.Load", t, func() {
		m := map[string]int{
			ColLocationID:      0,
			ColLocationType:    1,
			ColGroundLevel:     2,
			ColFinalDepth:      3,
			ColLatitude:        4,
			ColLongitude:       5,
			gdc.GeometryColumn: 6,
		}

		Convey("loads a full row", func() {
			var l Location
			row := []gdc.Value{"BH-001", "Borehole", 32.5, 15.0, 51.5, -0.12, "POINT(-0.12 51.5)"}
			So(l.Load(row, m), ShouldBeNil)
			So(l, ShouldResemble, Location{
				ID:          "BH-001",
				Type:        "Borehole",
				GroundLevel: 32.5,
				FinalDepth:  15.0,
				Latitude:    51.5,
				Longitude:   -0.12,
				WKT:         "POINT(-0.12 51.5)",
			})
		})

		Convey("nil cells load as zero values", func() {
			var l Location
			row := []gdc.Value{"TP-1", nil, nil, nil, nil, nil, nil}
			So(l.Load(row, m), ShouldBeNil)
			So(l, ShouldResemble, Location{ID: "TP-1"})
		})

		Convey("a missing column fails", func() {
			var l Location
			row := []gdc.Value{"BH-001", "Borehole"}
			err := l.Load(row, map[string]int{ColLocationID: 0, ColLocationType: 1})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "not in the result")
		})

		Convey("a non-numeric depth fails", func() {
			var l Location
			row := []gdc.Value{"BH-001", "Borehole", 32.5, "deep", 51.5, -0.12, nil}
			err := l.Load(row, m)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "FinalDepth should be a number")
		})
	})

	Convey("Fetch converts rows to Locations", t, func() {
		probe, err := gdc.TestQueryPage([][]gdc.Value{
			{"BH-001", "Borehole", 32.5, 15.0, 51.5, -0.12},
		}, []string{"POINT(-0.12 51.5)"}, 2)
		So(err, ShouldBeNil)
		page, err := gdc.TestQueryPage([][]gdc.Value{
			{"BH-001", "Borehole", 32.5, 15.0, 51.5, -0.12},
			{"TP-002", "TrialPit", 30.0, 2.5, 51.6, -0.15},
		}, []string{"POINT(-0.12 51.5)", "POINT(-0.15 51.6)"}, 2)
		So(err, ShouldBeNil)

		responses := []string{probe, page}
		var requests int
		handler := func(w http.ResponseWriter, r *http.Request) {
			i := requests
			requests++
			if i >= len(responses) {
				i = len(responses) - 1
			}
			w.Write([]byte(responses[i]))
		}
		server := httptest.NewServer(http.HandlerFunc(handler))
		defer server.Close()

		gdc.URL = server.URL + "/api"
		ctx := gdc.UseHTTPClient(context.Background(), server.Client())
		ctx = gdc.UseClient(ctx, "testtoken")

		locs, err := Fetch(ctx, gdc.FilterSet{gdc.Eq(ColLocationType, "Borehole")}, true)
		So(err, ShouldBeNil)
		So(locs, ShouldResemble, []Location{
			{
				ID:          "BH-001",
				Type:        "Borehole",
				GroundLevel: 32.5,
				FinalDepth:  15.0,
				Latitude:    51.5,
				Longitude:   -0.12,
				WKT:         "POINT(-0.12 51.5)",
			},
			{
				ID:          "TP-002",
				Type:        "TrialPit",
				GroundLevel: 30.0,
				FinalDepth:  2.5,
				Latitude:    51.6,
				Longitude:   -0.15,
				WKT:         "POINT(-0.15 51.6)",
			},
		})
		So(requests, ShouldEqual, 2) // probe + a single chunk
	})
}
