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
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stockparfait/errors"

	. "github.com/smartystreets/goconvey/convey"
)

// testServer mimics the GDC server: it records every request and serves the
// queued response bodies in order, repeating the last one when exhausted.
type testServer struct {
	*httptest.Server
	ResponseBody   []string
	ResponseStatus []int // parallel to ResponseBody; 0 means 200 OK

	RequestMethods []string
	RequestPaths   []string
	RequestQueries []url.Values
	RequestHeaders []http.Header
	RequestBodies  []string
}

func newTestServer() *testServer {
	s := &testServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *testServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	i := len(s.RequestPaths)
	s.RequestMethods = append(s.RequestMethods, r.Method)
	s.RequestPaths = append(s.RequestPaths, r.URL.Path)
	s.RequestQueries = append(s.RequestQueries, r.URL.Query())
	s.RequestHeaders = append(s.RequestHeaders, r.Header.Clone())
	s.RequestBodies = append(s.RequestBodies, string(body))

	status := http.StatusOK
	if i < len(s.ResponseStatus) && s.ResponseStatus[i] != 0 {
		status = s.ResponseStatus[i]
	}
	resp := "{}"
	if len(s.ResponseBody) > 0 {
		if i < len(s.ResponseBody) {
			resp = s.ResponseBody[i]
		} else {
			resp = s.ResponseBody[len(s.ResponseBody)-1]
		}
	}
	w.WriteHeader(status)
	w.Write([]byte(resp))
}

// useClient points the package at the test server and injects a client with
// the given token into the context.
func (s *testServer) useClient(ctx context.Context, token string) context.Context {
	URL = s.Server.URL + "/api"
	ctx = UseHTTPClient(ctx, s.Server.Client())
	return UseClient(ctx, token)
}

// lastAuth returns the Authorization header of the most recent request.
func (s *testServer) lastAuth() string {
	if len(s.RequestHeaders) == 0 {
		return ""
	}
	return s.RequestHeaders[len(s.RequestHeaders)-1].Get("Authorization")
}

func TestClient(t *testing.T) {
	Convey("Client in context", t, func() {
		ctx := context.Background()
		So(GetClient(ctx), ShouldBeNil)
		ctx = UseClient(ctx, "sometoken")
		So(GetClient(ctx), ShouldNotBeNil)
	})

	Convey("API calls work correctly", t, func() {
		server := newTestServer()
		defer server.Close()
		ctx := context.Background()

		Convey("send injects the bearer token and decodes the response", func() {
			ctx = server.useClient(ctx, "testtoken")
			server.ResponseBody = []string{`{"columns": [{"columnName": "id", "dataType": "Int"}]}`}
			schema, err := FetchSchema(ctx, "TestTable")
			So(err, ShouldBeNil)
			So(schema, ShouldResemble, Schema{{ColumnName: "id", DataType: "Int"}})
			So(server.lastAuth(), ShouldEqual, "Bearer testtoken")
			So(server.RequestMethods, ShouldResemble, []string{"GET"})
		})

		Convey("send reports the status and body of a failed call", func() {
			ctx = server.useClient(ctx, "testtoken")
			server.ResponseBody = []string{`{"error": "no such table"}`}
			server.ResponseStatus = []int{http.StatusNotFound}
			_, err := FetchSchema(ctx, "Missing")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "status 404")
			So(err.Error(), ShouldContainSubstring, "no such table")
		})

		Convey("Login exchanges credentials for a token", func() {
			URL = server.Server.URL + "/api"
			ctx = UseHTTPClient(ctx, server.Server.Client())
			server.ResponseBody = []string{`{"token": "granted"}`}
			ctx2, err := Login(ctx, "user", "secret")
			So(err, ShouldBeNil)
			c := GetClient(ctx2)
			So(c, ShouldNotBeNil)
			So(c.token, ShouldEqual, "granted")
			So(server.RequestPaths, ShouldResemble, []string{"/api/auth/login"})
			So(server.RequestBodies[0], ShouldEqual,
				`{"username":"user","password":"secret"}`)
			So(server.lastAuth(), ShouldEqual, "") // no token before login
		})

		Convey("Login fails without a token in the response", func() {
			URL = server.Server.URL + "/api"
			ctx = UseHTTPClient(ctx, server.Server.Client())
			server.ResponseBody = []string{`{}`}
			_, err := Login(ctx, "user", "secret")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no token")
		})
	})

	Convey("truncateBody caps long error bodies", t, func() {
		long := strings.Repeat("x", maxErrorBody+100)
		So(len(truncateBody([]byte(long))), ShouldEqual, maxErrorBody+3)
		So(truncateBody([]byte("short")), ShouldEqual, "short")
	})

	Convey("error kinds are distinguishable", t, func() {
		err := errors.Annotate(ErrChunkFetch, "failed to fetch chunk 2 of 5")
		So(errors.Is(err, ErrChunkFetch), ShouldBeTrue)
		So(errors.Is(err, ErrSchemaFetch), ShouldBeFalse)
		So(errors.Is(err, ErrInvalidFilter), ShouldBeFalse)
	})
}
