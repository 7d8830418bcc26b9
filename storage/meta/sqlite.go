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
	"time"

	"github.com/juju/errors"
)

type SQLite struct {
	db *sql.DB
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Init() error {
	// Create tables
	if _, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model TEXT,
	params TEXT,
	dataset TEXT,
	test_ratio REAL,
	top_n INTEGER,
	precision REAL,
	recall REAL,
	coverage REAL,
	popularity REAL,
	fit_time INTEGER,
	evaluate_time INTEGER,
	checkpoint TEXT,
	start_time TIMESTAMP
);`); err != nil {
		return errors.Trace(err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS runs_model ON runs (model);`); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (s *SQLite) AddRun(run *Run) error {
	result, err := s.db.Exec(`
INSERT INTO runs (model, params, dataset, test_ratio, top_n, precision, recall, coverage, popularity,
	fit_time, evaluate_time, checkpoint, start_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.Model, run.Params, run.Dataset, run.TestRatio, run.TopN, run.Precision, run.Recall, run.Coverage,
		run.Popularity, run.FitTime.Milliseconds(), run.EvaluateTime.Milliseconds(), run.Checkpoint,
		run.StartTime.UTC())
	if err != nil {
		return errors.Trace(err)
	}
	run.ID, err = result.LastInsertId()
	return errors.Trace(err)
}

const selectRuns = `
SELECT id, model, params, dataset, test_ratio, top_n, precision, recall, coverage, popularity,
	fit_time, evaluate_time, checkpoint, start_time FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run          Run
		fitTime      int64
		evaluateTime int64
	)
	if err := row.Scan(&run.ID, &run.Model, &run.Params, &run.Dataset, &run.TestRatio, &run.TopN,
		&run.Precision, &run.Recall, &run.Coverage, &run.Popularity, &fitTime, &evaluateTime,
		&run.Checkpoint, &run.StartTime); err != nil {
		return nil, err
	}
	run.FitTime = time.Duration(fitTime) * time.Millisecond
	run.EvaluateTime = time.Duration(evaluateTime) * time.Millisecond
	return &run, nil
}

func (s *SQLite) GetRun(id int64) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(selectRuns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundf("run %d", id)
	}
	return run, errors.Trace(err)
}

func (s *SQLite) ListRuns(model string, limit int) ([]*Run, error) {
	query := selectRuns
	var args []any
	if model != "" {
		query += ` WHERE model = ?`
		args = append(args, model)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rs, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rs.Close()
	var runs []*Run
	for rs.Next() {
		run, err := scanRun(rs)
		if err != nil {
			return nil, errors.Trace(err)
		}
		runs = append(runs, run)
	}
	return runs, errors.Trace(rs.Err())
}
