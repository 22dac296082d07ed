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

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/groundline/groundline/gdc"
	"github.com/groundline/groundline/table"

	toml "github.com/pelletier/go-toml/v2"
)

type Flags struct {
	Creds    string // credentials TOML file; default: ~/.groundline/credentials.toml
	Table    string // table name (required)
	Geometry bool   // include the synthetic "wkt" column
	CSV      bool   // dump CSV format; default: text
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("groundline-schema", flag.ExitOnError)
	fs.StringVar(&flags.Creds, "creds",
		filepath.Join(os.Getenv("HOME"), ".groundline", "credentials.toml"),
		"credentials file")
	fs.StringVar(&flags.Table, "table", "", "table name (required)")
	fs.BoolVar(&flags.Geometry, "geometry", false,
		`include the synthetic "wkt" column`)
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Table == "" {
		return nil, errors.Reason("missing required -table argument")
	}
	return &flags, err
}

// Credentials of the GDC server; same format as groundline-fetch.
type Credentials struct {
	URL      string `toml:"url"`
	Token    string `toml:"token"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

func parseCredentials(filePath string) (*Credentials, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open credentials file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	var c Credentials
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read credentials file %s", filePath)
	}
	return &c, nil
}

func connect(ctx context.Context, creds *Credentials) (context.Context, error) {
	if creds.URL != "" {
		gdc.URL = creds.URL
	}
	if creds.Token != "" {
		return gdc.UseClient(ctx, creds.Token), nil
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.Reason(
			"credentials must carry either a token or a username and password")
	}
	ctx, err := gdc.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, errors.Annotate(err, "failed to log in")
	}
	return ctx, nil
}

// schemaTable converts a schema into a printable two-column table.
func schemaTable(schema gdc.Schema, geometry bool) *table.Table {
	tbl := table.NewTable("column", "type")
	for _, f := range schema {
		tbl.AddRow(table.Record{f.ColumnName, f.DataType})
	}
	if geometry {
		tbl.AddRow(table.Record{gdc.GeometryColumn, "WKT"})
	}
	return tbl
}

func printSchema(ctx context.Context, flags *Flags, w io.Writer) error {
	creds, err := parseCredentials(flags.Creds)
	if err != nil {
		return errors.Annotate(err, "failed to parse credentials")
	}
	ctx, err = connect(ctx, creds)
	if err != nil {
		return err
	}
	schema, err := gdc.FetchSchema(ctx, flags.Table)
	if err != nil {
		return errors.Annotate(err, "failed to fetch schema of '%s'", flags.Table)
	}
	tbl := schemaTable(schema, flags.Geometry)
	if flags.CSV {
		if err := tbl.WriteCSV(w, table.Params{}); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := printSchema(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
