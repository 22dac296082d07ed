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
	"net/url"
	"testing"

	"github.com/stockparfait/errors"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSchema(t *testing.T) {
	t.Parallel()

	Convey("Schema methods work", t, func() {
		Convey("Equal", func() {
			orig := Schema{{"foo", "Int"}, {"bar", "Text"}}
			same := Schema{{"foo", "Int"}, {"bar", "Text"}}
			diffOrder := Schema{{"bar", "Text"}, {"foo", "Int"}}
			shorter := Schema{{"foo", "Int"}}
			So(orig.Equal(same), ShouldBeTrue)
			So(orig.Equal(diffOrder), ShouldBeFalse)
			So(orig.Equal(shorter), ShouldBeFalse)
		})

		Convey("MapFields", func() {
			s := Schema{
				{ColumnName: "one", DataType: "Text"},
				{ColumnName: "two", DataType: "Int"},
				{ColumnName: "three", DataType: "Date"},
			}
			So(s.MapFields(), ShouldResemble, map[string]int{"one": 0, "two": 1, "three": 2})
		})

		Convey("ColumnNames preserves the declared order", func() {
			s := Schema{{"b", "Int"}, {"a", "Text"}}
			So(s.ColumnNames(false), ShouldResemble, []string{"b", "a"})
		})

		Convey("ColumnNames appends the geometry column last", func() {
			s := Schema{{"a", "Text"}, {"b", "Int"}}
			So(s.ColumnNames(true), ShouldResemble, []string{"a", "b", GeometryColumn})
		})

		Convey("String", func() {
			s := Schema{{ColumnName: "one", DataType: "Text"}, {ColumnName: "two", DataType: "Int"}}
			So(s.String(), ShouldEqual, "{one: Text, two: Int}")
		})
	})
}

func TestFetchSchema(t *testing.T) {
	Convey("FetchSchema", t, func() {
		server := newTestServer()
		defer server.Close()
		ctx := server.useClient(context.Background(), "testtoken")

		Convey("decodes the column descriptors in order", func() {
			server.ResponseBody = []string{`{"columns": [
				{"columnName": "locationId", "dataType": "Text"},
				{"columnName": "finalDepth", "dataType": "Double"}
			]}`}
			schema, err := FetchSchema(ctx, "LocationDetails")
			So(err, ShouldBeNil)
			So(schema, ShouldResemble, Schema{
				{ColumnName: "locationId", DataType: "Text"},
				{ColumnName: "finalDepth", DataType: "Double"},
			})
			So(server.RequestPaths, ShouldResemble, []string{"/api/data/schema"})
			So(server.RequestQueries[0], ShouldResemble,
				url.Values{"tableName": []string{"LocationDetails"}})
		})

		Convey("fails on a server error", func() {
			server.ResponseBody = []string{`oops`}
			server.ResponseStatus = []int{500}
			_, err := FetchSchema(ctx, "LocationDetails")
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrSchemaFetch), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "LocationDetails")
		})

		Convey("fails on an empty column list", func() {
			server.ResponseBody = []string{`{"columns": []}`}
			_, err := FetchSchema(ctx, "LocationDetails")
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrSchemaFetch), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "declares no columns")
		})

		Convey("fails without a client in the context", func() {
			_, err := FetchSchema(context.Background(), "LocationDetails")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no client in context")
		})
	})
}
