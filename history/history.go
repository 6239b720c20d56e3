// Package history is the server's optional match-history audit log:
// one row per finished game, written through a single goroutine that
// serializes all access to the sqlite3 database, following the
// teacher's DBAction channel pattern.
package history

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-othello/board"
	"go-othello/proto"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	black_id    INTEGER NOT NULL,
	black_name  TEXT NOT NULL,
	white_id    INTEGER NOT NULL,
	white_name  TEXT NOT NULL,
	winner      TEXT NOT NULL,
	white_score INTEGER NOT NULL,
	black_score INTEGER NOT NULL,
	move_count  INTEGER NOT NULL,
	finished_at DATETIME NOT NULL
);
`

// action is a unit of work run against the serializing goroutine's
// exclusive *sql.DB handle.
type action func(*sql.DB, context.Context)

// Record is one finished match, ready to be appended to the log.
type Record struct {
	BlackId, WhiteId     proto.ClientId
	BlackName, WhiteName string
	Winner               board.Piece
	WhiteScore           int
	BlackScore           int
	MoveCount            int
	FinishedAt           time.Time
}

// Log is the append-only match-history store. A nil *Log is valid and
// Append on it is a no-op, so history can be disabled by simply not
// constructing one.
type Log struct {
	act chan action
}

// Open opens (creating if necessary) the sqlite3 database at path and
// starts its serializing goroutine. An empty path disables history:
// Open returns (nil, nil).
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, nil
	}

	db, err := sql.Open("sqlite3", path+"?mode=rwc")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	l := &Log{act: make(chan action, 8)}
	go l.run(db)
	return l, nil
}

func (l *Log) run(db *sql.DB) {
	defer db.Close()
	for a := range l.act {
		a(db, context.Background())
	}
}

// Append queues rec to be written. It does not block on the write
// completing; errors are logged, not returned, since a history-log
// failure must never affect an in-progress match.
func (l *Log) Append(rec Record) {
	if l == nil {
		return
	}
	l.act <- func(db *sql.DB, ctx context.Context) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO matches
				(black_id, black_name, white_id, white_name, winner,
				 white_score, black_score, move_count, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.BlackId, rec.BlackName, rec.WhiteId, rec.WhiteName, rec.Winner.String(),
			rec.WhiteScore, rec.BlackScore, rec.MoveCount, rec.FinishedAt)
		if err != nil {
			log.Printf("history: failed to record match: %v", err)
		}
	}
}

// Close waits until every queued Append has been processed, then
// stops the serializing goroutine. A nil *Log is valid and Close on it
// is a no-op.
func (l *Log) Close() {
	if l == nil {
		return
	}
	done := make(chan struct{})
	l.act <- func(*sql.DB, context.Context) { close(done) }
	<-done
	close(l.act)
}
