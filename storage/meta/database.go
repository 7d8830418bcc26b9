// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package meta

import (
	"database/sql"
	"net/url"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"
)

const SQLitePrefix = "sqlite://"

// Run is the record of an evaluated experiment.
type Run struct {
	ID           int64
	Model        string
	Params       string
	Dataset      string
	TestRatio    float64
	TopN         int
	Precision    float32
	Recall       float32
	Coverage     float32
	Popularity   float32
	FitTime      time.Duration
	EvaluateTime time.Duration
	Checkpoint   string
	StartTime    time.Time
}

type Database interface {
	Close() error
	Init() error
	// AddRun inserts a run and assigns its ID.
	AddRun(run *Run) error
	// GetRun returns an error satisfying errors.Is(err, errors.NotFound) if the run doesn't exist.
	GetRun(id int64) (*Run, error)
	// ListRuns returns the latest runs first. All models are listed if model is empty.
	ListRuns(model string, limit int) ([]*Run, error)
}

func AppendURLParams(rawURL string, params []lo.Tuple2[string, string]) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Trace(err)
	}
	q := parsed.Query()
	for _, tuple := range params {
		q.Add(tuple.A, tuple.B)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// Open a connection to a database.
func Open(path string) (Database, error) {
	var err error
	if strings.HasPrefix(path, SQLitePrefix) {
		dataSourceName := path[len(SQLitePrefix):]
		// append parameters
		if dataSourceName, err = AppendURLParams(dataSourceName, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLite)
		if database.db, err = sql.Open("sqlite", dataSourceName); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.NotSupportedf("database %s", path)
}
