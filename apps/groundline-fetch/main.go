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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/groundline/groundline/gdc"
	"github.com/groundline/groundline/message"
	"github.com/groundline/groundline/table"

	toml "github.com/pelletier/go-toml/v2"
)

type Flags struct {
	Creds    string // credentials TOML file; default: ~/.groundline/credentials.toml
	Config   string // JSON query config file (required)
	CSV      bool   // dump CSV format; default: text
	Describe bool   // print numeric column summaries instead of the rows
	LogLevel logging.Level
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("groundline-fetch", flag.ExitOnError)
	fs.StringVar(&flags.Creds, "creds",
		filepath.Join(os.Getenv("HOME"), ".groundline", "credentials.toml"),
		"credentials file")
	fs.StringVar(&flags.Config, "conf", "", "query config file (required)")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	fs.BoolVar(&flags.Describe, "describe", false,
		"print numeric column summaries instead of the rows")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Config == "" {
		return nil, errors.Reason("missing required -conf argument")
	}
	return &flags, err
}

// Credentials of the GDC server. Either a pre-issued token, or a
// username/password pair exchanged for one at startup.
type Credentials struct {
	URL      string `toml:"url"` // optional server URL override
	Token    string `toml:"token"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

func parseCredentials(filePath string) (*Credentials, error) {
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			sample := `username = "you@example.com"
password = "YourSecretGroundDataPassword"
`
			err = errors.Annotate(err,
				"credentials file '%s' does not exist.\nPlease create a file containing:\n%s",
				filePath, sample)
			return nil, err
		}
		return nil, errors.Annotate(err,
			"cannot check credentials file for existence: '%s'", filePath)
	}
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

// connect injects an authenticated gdc.Client into the context.
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

// QueryConfig is the JSON query config of the app.
type QueryConfig struct {
	Table     string      `json:"table" required:"true"`
	Filters   interface{} `json:"filters"` // sequence of {columnName, operator, value}
	Columns   []string    `json:"columns"`
	Geometry  bool        `json:"geometry"`
	ChunkSize int         `json:"chunk_size" default:"1000"`
	Workers   int         `json:"workers" default:"1"`
}

var _ message.Message = &QueryConfig{}

func (c *QueryConfig) InitMessage(js interface{}) error {
	if err := message.Init(c, js); err != nil {
		return errors.Annotate(err, "failed to init QueryConfig")
	}
	if c.ChunkSize < 1 {
		return errors.Reason("chunk_size [%d] must be >= 1", c.ChunkSize)
	}
	return nil
}

func fetchTable(ctx context.Context, config *QueryConfig) (*gdc.Result, error) {
	filters, err := gdc.ParseFilters(config.Filters)
	if err != nil {
		return nil, errors.Annotate(err, "invalid filters in config")
	}
	q := gdc.NewTableQuery(config.Table).
		Where(filters...).
		ChunkSize(config.ChunkSize).
		Geometry(config.Geometry).
		Workers(config.Workers)
	if len(config.Columns) > 0 {
		q = q.Columns(config.Columns...)
	}
	return q.Fetch(ctx)
}

func describeTable(res *gdc.Result) *table.Table {
	tbl := table.NewTable("column", "count", "mean", "stddev", "min", "max")
	for _, s := range res.Describe() {
		tbl.AddRow(table.Record{
			s.Column,
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.4f", s.Mean),
			fmt.Sprintf("%.4f", s.StdDev),
			fmt.Sprintf("%.4f", s.Min),
			fmt.Sprintf("%.4f", s.Max),
		})
	}
	return tbl
}

func printData(ctx context.Context, flags *Flags, w io.Writer) error {
	creds, err := parseCredentials(flags.Creds)
	if err != nil {
		return errors.Annotate(err, "failed to parse credentials")
	}
	ctx, err = connect(ctx, creds)
	if err != nil {
		return err
	}
	var config QueryConfig
	if err := message.FromFile(&config, flags.Config); err != nil {
		return errors.Annotate(err, "failed to read config '%s'", flags.Config)
	}
	res, err := fetchTable(ctx, &config)
	if err != nil {
		return errors.Annotate(err, "failed to fetch table '%s'", config.Table)
	}
	if res.Empty() {
		logging.Infof(ctx, "table '%s': query matched no rows", config.Table)
	}
	tbl := res.Table()
	if flags.Describe {
		tbl = describeTable(res)
	}
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

	if err := printData(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
