// Package trace implements an optional sqlite-backed step recorder: one
// row per eval_next_instr step, for post-mortem replay of a Thread's
// execution (spec.md §4.6, "ambient stack" expansion). Never touched by
// eval_next_instr itself — a Recorder only observes a Thread's state
// before and after a step runs.
//
// Restated around a single fixed schema and driver rather than a
// multi-DSN connection registry — a step trace only ever needs one
// pure-Go sqlite file or in-memory DB.
package trace

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"

	"github.com/dabernado/iris-go/internal/bytecode"
	"github.com/dabernado/iris-go/internal/heap"
	"github.com/dabernado/iris-go/internal/value"
	"github.com/dabernado/iris-go/internal/vm"
)

const schema = `
CREATE TABLE IF NOT EXISTS steps (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id  TEXT NOT NULL,
	ip         INTEGER NOT NULL,
	opcode     TEXT NOT NULL,
	backward   INTEGER NOT NULL,
	data_addr  TEXT NOT NULL,
	status     TEXT NOT NULL,
	blocks     INTEGER NOT NULL,
	bytes      INTEGER NOT NULL,
	recorded_at TEXT NOT NULL
);
`

// Recorder persists a row per step to a sqlite database. Safe for
// concurrent use by multiple threads recording to the same Recorder,
// since database/sql's *sql.DB already pools and serializes connections.
type Recorder struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if absent) a sqlite database at dsn and ensures
// the steps table exists. Use dsn ":memory:" for an ephemeral recorder
// scoped to one process.
func Open(dsn string) (*Recorder, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace: create schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// Step is one recorded eval_next_instr observation.
type Step struct {
	ThreadID string
	IP       int
	Opcode   bytecode.OpCode
	Backward bool
	Data     value.RawPtr
	Status   vm.EvalStatus
	Heap     heap.Stats
}

// Record inserts one step row.
func (r *Recorder) Record(s Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(
		`INSERT INTO steps (thread_id, ip, opcode, backward, data_addr, status, blocks, bytes, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ThreadID, s.IP, s.Opcode.String(), boolToInt(s.Backward),
		fmt.Sprintf("%p", s.Data.Unsafe()), s.Status.String(),
		s.Heap.Blocks, int64(s.Heap.BytesCommitted), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("trace: insert step: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Summary aggregates a thread's recorded steps for a human-readable
// post-mortem line.
type Summary struct {
	ThreadID   string
	StepCount  int
	LastStatus string
	PeakBytes  int64
}

// Summarize reports aggregate stats for threadID's recorded steps.
func (r *Recorder) Summarize(threadID string) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(MAX(bytes), 0) FROM steps WHERE thread_id = ?`,
		threadID,
	)
	var count int
	var peak int64
	if err := row.Scan(&count, &peak); err != nil {
		return Summary{}, fmt.Errorf("trace: summarize %s: %w", threadID, err)
	}

	var last string
	lastRow := r.db.QueryRow(
		`SELECT status FROM steps WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`,
		threadID,
	)
	if err := lastRow.Scan(&last); err != nil && err != sql.ErrNoRows {
		return Summary{}, fmt.Errorf("trace: last status %s: %w", threadID, err)
	}

	return Summary{ThreadID: threadID, StepCount: count, LastStatus: last, PeakBytes: peak}, nil
}

// String renders a summary line, e.g. for a CLI's --trace-summary flag.
func (s Summary) String() string {
	return fmt.Sprintf("%s: %d step(s), last=%s, peak %s",
		s.ThreadID, s.StepCount, s.LastStatus, humanize.Bytes(uint64(s.PeakBytes)))
}
