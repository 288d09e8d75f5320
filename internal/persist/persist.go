// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package persist records merge runs and their per-row outcomes in a
// SQLite database. The history is an audit log for past runs, not a
// retry queue: nothing here is replayed.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/matta/gmailmerge/internal/message"

	"github.com/pkg/errors"
)

var createTableSql = []string{
	// The merge_runs table holds one record per merge run.
	//
	// Field: run_id
	//
	//   A UUID assigned when the run starts.
	//
	// Field: started_at
	//
	//   RFC 3339 UTC timestamp of the run start.
	//
	// Field: mode
	//
	//   The send mode: "new", "followup" or "draft".
	//
	// Field: label_id
	//
	//   The provider label id applied to new mail, or empty when
	//   labeling was disabled or degraded.
	`
CREATE TABLE IF NOT EXISTS merge_runs (
run_id TEXT NOT NULL PRIMARY KEY,
started_at TEXT NOT NULL,
mode TEXT NOT NULL,
label_id TEXT NOT NULL,
subject TEXT NOT NULL
);`,
	// The merge_outcomes table holds one record per processed row.
	//
	// Field: position
	//
	//   The zero-based position of the row in the input table.
	//   Outcomes are written in table order, so (run_id, position)
	//   reproduces the run exactly.
	//
	// Field: message_id, thread_id
	//
	//   Provider identifiers of the transmitted message. Empty
	//   for skipped and failed rows.
	`
CREATE TABLE IF NOT EXISTS merge_outcomes (
run_id TEXT NOT NULL,
position INTEGER NOT NULL,
recipient TEXT NOT NULL,
status TEXT NOT NULL,
message_id TEXT NOT NULL,
thread_id TEXT NOT NULL,
detail TEXT NOT NULL,
PRIMARY KEY (run_id, position),
FOREIGN KEY (run_id) REFERENCES merge_runs (run_id)
);`,
}

// Run describes one merge run.
type Run struct {
	ID        string
	StartedAt time.Time
	Mode      message.Mode
	LabelID   string
	Subject   string
}

// RunSummary is a Run with its outcome counts.
type RunSummary struct {
	Run
	Total   int
	Sent    int
	Drafted int
	Skipped int
	Failed  int
}

type DB struct {
	db *sql.DB
}

type Tx struct {
	tx *sql.Tx
}

func dsnFromPath(path string, addValues url.Values) (string, error) {
	var u *url.URL
	if !strings.HasPrefix(path, "file:") {
		u = &url.URL{Scheme: "file", Path: path}
	} else {
		var err error
		u, err = url.Parse(path)
		if err != nil {
			return "", err
		}
	}
	values := u.Query()
	for k, v := range addValues {
		for _, item := range v {
			values.Add(k, item)
		}
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

func Open(ctx context.Context, path string) (*DB, error) {
	// The _busy_timeout is a SQLite extension that controls how
	// long SQLite will poll before giving up. The default of 5
	// seconds is too short when another run holds the history
	// open; go with 5 minutes.
	var busyTimeout = int(5*time.Minute) / int(time.Millisecond)

	dsn, err := dsnFromPath(path, url.Values{
		"_busy_timeout": {fmt.Sprintf("%d", busyTimeout)}})
	if err != nil {
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not form a DB DSN from "+
				"the given path",
			path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not open database at %q",
			path, dsn)
	}

	if err = initSchema(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrapf(err,
			"Open(%q) failed: could not initialize the "+
				"database schema", path)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction failed")
	}
	return &Tx{tx}, nil
}

func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	for _, sql := range createTableSql {
		if _, err := db.ExecContext(ctx, sql); err != nil {
			return errors.Wrapf(err, "while executing %q", sql)
		}
	}
	return nil
}

func (tx *Tx) InsertRun(ctx context.Context, run Run) error {
	const sql = `INSERT INTO merge_runs
		(run_id, started_at, mode, label_id, subject)
		values ($1, $2, $3, $4, $5)`
	_, err := tx.tx.ExecContext(ctx, sql, run.ID,
		run.StartedAt.UTC().Format(time.RFC3339), string(run.Mode),
		run.LabelID, run.Subject)
	return errors.Wrap(err, "db insert failed for merge run")
}

func (tx *Tx) InsertOutcome(ctx context.Context, runID string, position int, o message.Outcome) error {
	const sql = `INSERT INTO merge_outcomes
		(run_id, position, recipient, status, message_id, thread_id, detail)
		values ($1, $2, $3, $4, $5, $6, $7)`
	_, err := tx.tx.ExecContext(ctx, sql, runID, position,
		o.Recipient, string(o.Status), o.MessageID, o.ThreadID, o.Detail)
	return errors.Wrapf(err, "db insert failed for outcome %d", position)
}

// withTx runs fn inside a transaction, committing on success and
// rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Record writes the run and then every outcome read from the channel
// in arrival order. It is the consumer half of the engine's outcome
// pipeline. Each record commits as it arrives, on a context detached
// from cancellation: an outcome on the channel describes mail that has
// already left the account, and an interrupt must not roll its audit
// record back.
func (db *DB) Record(ctx context.Context, run Run, outcomes <-chan message.Outcome) error {
	wctx := context.WithoutCancel(ctx)

	err := db.withTx(wctx, func(tx *Tx) error {
		return tx.InsertRun(wctx, run)
	})
	if err != nil {
		return err
	}

	position := 0
	for o := range outcomes {
		o := o
		err := db.withTx(wctx, func(tx *Tx) error {
			return tx.InsertOutcome(wctx, run.ID, position, o)
		})
		if err != nil {
			return err
		}
		position++
	}
	return nil
}

// ListRuns streams every recorded run with its outcome counts, newest
// first.
func (db *DB) ListRuns(ctx context.Context, handler func(RunSummary) error) error {
	const q = `
SELECT r.run_id, r.started_at, r.mode, r.label_id, r.subject,
       COUNT(o.run_id),
       COALESCE(SUM(o.status = 'sent'), 0),
       COALESCE(SUM(o.status = 'drafted'), 0),
       COALESCE(SUM(o.status = 'skipped'), 0),
       COALESCE(SUM(o.status = 'failed'), 0)
FROM merge_runs r
LEFT JOIN merge_outcomes o ON o.run_id = r.run_id
GROUP BY r.run_id
ORDER BY r.started_at DESC
`
	rows, err := db.db.QueryContext(ctx, q)
	if err != nil {
		return errors.Wrap(err, "db query failed in ListRuns")
	}
	defer rows.Close()

	for rows.Next() {
		var s RunSummary
		var started, mode string
		if err := rows.Scan(&s.ID, &started, &mode, &s.LabelID, &s.Subject,
			&s.Total, &s.Sent, &s.Drafted, &s.Skipped, &s.Failed); err != nil {
			return errors.Wrap(err, "db scan failed in ListRuns")
		}
		s.Mode = message.Mode(mode)
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			s.StartedAt = t
		}
		if err := handler(s); err != nil {
			return err
		}
	}
	return errors.Wrap(rows.Err(), "db iteration failed in ListRuns")
}
