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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/stockparfait/errors"
)

type contextKey int

const (
	clientContextKey contextKey = iota
	httpClientContextKey
)

// URL is the default base URL of the server. It may be overwritten in tests
// before creating a new client.
var URL = "https://api.grounddata.io/api"

// Errors distinguishing the failure kinds of a retrieval. Use errors.Is to
// test an error for one of these.
var (
	ErrInvalidFilter = errors.Reason("invalid filter")
	ErrSchemaFetch   = errors.Reason("schema fetch failed")
	ErrChunkFetch    = errors.Reason("chunk fetch failed")
)

// Client for querying GDC tables.
type Client struct {
	baseURL string // the base URL of the server
	token   string // bearer token obtained from the login endpoint
}

// newClient creates a new client.
func newClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
	}
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client based on an existing bearer token and
// injects it into the context. Use Login to obtain a token from credentials.
func UseClient(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, clientContextKey, newClient(URL, token))
}

// UseHTTPClient injects an http.Client into the context, to be used by all
// the API calls. By default, http.DefaultClient is used.
func UseHTTPClient(ctx context.Context, c *http.Client) context.Context {
	return context.WithValue(ctx, httpClientContextKey, c)
}

func httpClient(ctx context.Context) *http.Client {
	c, ok := ctx.Value(httpClientContextKey).(*http.Client)
	if !ok {
		return http.DefaultClient
	}
	return c
}

// maxErrorBody limits how much of an error response body is quoted in the
// error message.
const maxErrorBody = 512

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}

// send performs a single HTTP exchange with the server: it encodes body (if
// non-nil) as JSON, injects the auth header, and decodes the response into
// result (if non-nil). It is the narrow transport interface all API calls go
// through.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Annotate(err, "failed to encode request body for '%s'", path)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, reqBody)
	if err != nil {
		return errors.Annotate(err, "failed to create %s request for '%s'", method, uri)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := httpClient(ctx).Do(req)
	if err != nil {
		return errors.Annotate(err, "%s %s failed", method, uri)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Annotate(err, "failed to read response of %s %s", method, uri)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Reason("server returned status %d for %s %s: %s",
			resp.StatusCode, method, uri, truncateBody(data))
	}
	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return errors.Annotate(err, "failed to decode response of %s %s", method, uri)
		}
	}
	return nil
}

// loginRequest is the wire payload of the login endpoint.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the format returned by the login endpoint.
type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges the credentials for a bearer token and injects a ready to
// use Client into the context.
func Login(ctx context.Context, username, password string) (context.Context, error) {
	c := newClient(URL, "")
	var res loginResponse
	req := loginRequest{Username: username, Password: password}
	if err := c.send(ctx, http.MethodPost, "/auth/login", nil, &req, &res); err != nil {
		return nil, errors.Annotate(err, "login failed for user '%s'", username)
	}
	if res.Token == "" {
		return nil, errors.Reason("login response carries no token")
	}
	return context.WithValue(ctx, clientContextKey, newClient(URL, res.Token)), nil
}
