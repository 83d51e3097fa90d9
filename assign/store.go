package assign

import (
	"database/sql"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"

	// ncruces/go-sqlite3 is a pure-Go (no cgo) SQLite driver; the same
	// choice Mschirtzinger-jj-beads makes for its own embedded store, for
	// the same reason: a single static binary with no cgo toolchain
	// requirement. Registered under the "sqlite3" driver name.
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gitbutlerapp/vbranch-core/diffengine"
)

const schema = `
CREATE TABLE IF NOT EXISTS assignments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	path       TEXT NOT NULL,
	old_start  INTEGER,
	old_lines  INTEGER,
	new_start  INTEGER,
	new_lines  INTEGER,
	stack_id   TEXT
);
CREATE TABLE IF NOT EXISTS hunk_locks (
	assignment_id INTEGER NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
	commit_id     TEXT NOT NULL,
	stack_id      TEXT NOT NULL
);
`

// Store is the on-disk (SQLite) persistence for HunkAssignment (§6:
// "an on-disk table with columns (path, old_start, old_lines, new_start,
// new_lines, stack_id); whole-file claims use NULL in the hunk columns").
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the assignment store at path. Use
// ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("assign: open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("assign: migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns every persisted assignment, most recently written first
// is not guaranteed; callers reconcile against current hunks anyway (§4.2).
func (s *Store) Load() ([]HunkAssignment, error) {
	rows, err := s.db.Query(`SELECT id, path, old_start, old_lines, new_start, new_lines, stack_id FROM assignments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HunkAssignment
	ids := map[int64]*HunkAssignment{}
	var order []int64

	for rows.Next() {
		var (
			id                                  int64
			path                                string
			oldStart, oldLines, newStart, newLines sql.NullInt64
			stackID                             sql.NullString
		)
		if err := rows.Scan(&id, &path, &oldStart, &oldLines, &newStart, &newLines, &stackID); err != nil {
			return nil, err
		}
		a := HunkAssignment{Path: path}
		if oldStart.Valid {
			a.HunkHeader = &diffengine.HunkHeader{
				OldStart: int(oldStart.Int64),
				OldLines: int(oldLines.Int64),
				NewStart: int(newStart.Int64),
				NewLines: int(newLines.Int64),
			}
		}
		if stackID.Valid && stackID.String != "" {
			id, err := uuid.Parse(stackID.String)
			if err != nil {
				return nil, err
			}
			a.StackID = &id
		}
		ids[id] = &a
		order = append(order, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lockRows, err := s.db.Query(`SELECT assignment_id, commit_id, stack_id FROM hunk_locks`)
	if err != nil {
		return nil, err
	}
	defer lockRows.Close()
	for lockRows.Next() {
		var assignmentID int64
		var commitHex, stackHex string
		if err := lockRows.Scan(&assignmentID, &commitHex, &stackHex); err != nil {
			return nil, err
		}
		a, ok := ids[assignmentID]
		if !ok {
			continue
		}
		sid, err := uuid.Parse(stackHex)
		if err != nil {
			return nil, err
		}
		a.HunkLocks = append(a.HunkLocks, HunkLock{CommitID: plumbing.NewHash(commitHex), StackID: sid})
	}

	for _, id := range order {
		out = append(out, *ids[id])
	}
	return out, nil
}

// Save replaces the entire persisted assignment set. §4.2: "assignments
// are persisted; rewritten on every status call after reconciliation."
func (s *Store) Save(assignments []HunkAssignment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM hunk_locks`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM assignments`); err != nil {
		return err
	}

	insertAssignment, err := tx.Prepare(`INSERT INTO assignments (path, old_start, old_lines, new_start, new_lines, stack_id) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertAssignment.Close()

	insertLock, err := tx.Prepare(`INSERT INTO hunk_locks (assignment_id, commit_id, stack_id) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertLock.Close()

	for _, a := range assignments {
		var oldStart, oldLines, newStart, newLines sql.NullInt64
		if a.HunkHeader != nil {
			oldStart = sql.NullInt64{Int64: int64(a.HunkHeader.OldStart), Valid: true}
			oldLines = sql.NullInt64{Int64: int64(a.HunkHeader.OldLines), Valid: true}
			newStart = sql.NullInt64{Int64: int64(a.HunkHeader.NewStart), Valid: true}
			newLines = sql.NullInt64{Int64: int64(a.HunkHeader.NewLines), Valid: true}
		}
		var stackID sql.NullString
		if a.StackID != nil {
			stackID = sql.NullString{String: a.StackID.String(), Valid: true}
		}

		res, err := insertAssignment.Exec(a.Path, oldStart, oldLines, newStart, newLines, stackID)
		if err != nil {
			return err
		}
		assignmentID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, lock := range a.HunkLocks {
			if _, err := insertLock.Exec(assignmentID, lock.CommitID.String(), lock.StackID.String()); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
