package stack

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gitbutlerapp/vbranch-core/odb"
)

const schema = `
CREATE TABLE IF NOT EXISTS stacks (
	id            TEXT PRIMARY KEY,
	"order"       INTEGER NOT NULL,
	in_workspace  INTEGER NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	upstream_json TEXT,
	heads_json    TEXT NOT NULL
);
`

// heads/upstream are stored as JSON blobs rather than normalized rows:
// they're always read and written as a whole stack, and the ordering
// within Heads matters, which a join would have to reconstruct anyway.

// Store is the keyed StackId -> Stack persistence from §6.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("stack: open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("stack: migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ListInWorkspace returns every applied stack ordered by Order (§4.3).
func (s *Store) ListInWorkspace() ([]Stack, error) {
	rows, err := s.db.Query(`SELECT id, "order", in_workspace, description, upstream_json, heads_json FROM stacks WHERE in_workspace = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stack
	for rows.Next() {
		st, err := scanStack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, rows.Err()
}

// Get loads one stack by id, regardless of workspace membership.
func (s *Store) Get(id StackId) (*Stack, error) {
	row := s.db.QueryRow(`SELECT id, "order", in_workspace, description, upstream_json, heads_json FROM stacks WHERE id = ?`, id.String())
	st, err := scanStack(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ErrStackNotFound)
		}
		return nil, err
	}
	return &st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStack(row scanner) (Stack, error) {
	var (
		idStr, headsJSON string
		order            uint32
		inWorkspace      int
		description      string
		upstreamJSON     sql.NullString
	)
	if err := row.Scan(&idStr, &order, &inWorkspace, &description, &upstreamJSON, &headsJSON); err != nil {
		return Stack{}, err
	}
	id, err := parseStackID(idStr)
	if err != nil {
		return Stack{}, err
	}
	var heads []Head
	if err := json.Unmarshal([]byte(headsJSON), &heads); err != nil {
		return Stack{}, err
	}
	var upstream *odb.RemoteRef
	if upstreamJSON.Valid {
		upstream = &odb.RemoteRef{}
		if err := json.Unmarshal([]byte(upstreamJSON.String), upstream); err != nil {
			return Stack{}, err
		}
	}
	return Stack{
		ID:          id,
		Heads:       heads,
		Order:       order,
		InWorkspace: inWorkspace != 0,
		Upstream:    upstream,
		Description: description,
	}, nil
}

func parseStackID(s string) (StackId, error) {
	return uuid.Parse(s)
}

// CreateRequest is the input to Create (§4.3).
type CreateRequest struct {
	Heads       []Head
	Order       *uint32 // nil defaults to next-available
	Description string
}

// Create inserts a new stack at the requested order (defaulting to
// next-available), bumping subsequent stacks, and returns it with a fresh
// StackId (§4.3).
func (s *Store) Create(req CreateRequest) (*Stack, error) {
	if len(req.Heads) == 0 {
		return nil, ErrNoHeads
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := resolveOrder(tx, req.Order)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`UPDATE stacks SET "order" = "order" + 1 WHERE "order" >= ?`, order); err != nil {
		return nil, err
	}

	st := Stack{
		ID:          NewStackId(),
		Heads:       req.Heads,
		Order:       order,
		InWorkspace: true,
		Description: req.Description,
	}
	if err := insertStack(tx, st); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &st, nil
}

func resolveOrder(tx *sql.Tx, requested *uint32) (uint32, error) {
	if requested != nil {
		return *requested, nil
	}
	var max sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX("order") FROM stacks WHERE in_workspace = 1`).Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return uint32(max.Int64) + 1, nil
}

func insertStack(tx *sql.Tx, st Stack) error {
	headsJSON, err := json.Marshal(st.Heads)
	if err != nil {
		return err
	}
	var upstreamJSON sql.NullString
	if st.Upstream != nil {
		b, err := json.Marshal(st.Upstream)
		if err != nil {
			return err
		}
		upstreamJSON = sql.NullString{String: string(b), Valid: true}
	}
	inWorkspace := 0
	if st.InWorkspace {
		inWorkspace = 1
	}
	_, err = tx.Exec(`INSERT INTO stacks (id, "order", in_workspace, description, upstream_json, heads_json) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET "order" = excluded."order", in_workspace = excluded.in_workspace,
			description = excluded.description, upstream_json = excluded.upstream_json, heads_json = excluded.heads_json`,
		st.ID.String(), st.Order, inWorkspace, st.Description, upstreamJSON, string(headsJSON))
	return err
}

// HeadUpdate patches a subset of a Head's mutable fields; nil fields are
// left unchanged.
type HeadUpdate struct {
	NewName     *string
	Description *string
	Upstream    *odb.RemoteRef
}

// UpdateBranch modifies name, description, or upstream binding of one head
// (§4.3).
func (s *Store) UpdateBranch(id StackId, headName string, update HeadUpdate) (*Stack, error) {
	st, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range st.Heads {
		if st.Heads[i].Name != headName {
			continue
		}
		found = true
		if update.NewName != nil {
			st.Heads[i].Name = *update.NewName
		}
		if update.Description != nil {
			st.Heads[i].Description = *update.Description
		}
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", headName, ErrHeadNotFound)
	}
	if update.Upstream != nil {
		st.Upstream = update.Upstream
	}
	if err := s.put(*st); err != nil {
		return nil, err
	}
	return st, nil
}

// Delete removes a stack entirely.
func (s *Store) Delete(id StackId) error {
	_, err := s.db.Exec(`DELETE FROM stacks WHERE id = ?`, id.String())
	return err
}

// SetInWorkspace flips whether a stack contributes to the workspace
// commit (§4.3's apply_branch/unapply_branch). Unlike Delete, the stack
// and its history survive; it just stops being folded into the working
// tree until re-applied.
func (s *Store) SetInWorkspace(id StackId, inWorkspace bool) (*Stack, error) {
	st, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	st.InWorkspace = inWorkspace
	if err := s.put(*st); err != nil {
		return nil, err
	}
	return st, nil
}

// AppendCommit advances the working head's tip. It refuses (unless
// fromRebase is true) to move to a tip that isn't a descendant of the
// previous one, matching §4.3's "panics if new_tip is not a descendant of
// the previous tip unless the caller is the rebase engine" -- panics are
// not idiomatic Go at a package boundary, so this returns ErrNotDescendant
// instead.
func (s *Store) AppendCommit(store *odb.Store, id StackId, newTip odb.ObjectId, fromRebase bool) (*Stack, error) {
	st, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	head, err := st.WorkingHead()
	if err != nil {
		return nil, err
	}
	if !fromRebase && head.Tip != odb.ZeroID {
		ok, err := store.IsAncestor(head.Tip, newTip)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotDescendant
		}
	}
	head.Tip = newTip
	if err := s.put(*st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) put(st Stack) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertStack(tx, st); err != nil {
		return err
	}
	return tx.Commit()
}
