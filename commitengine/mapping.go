// Package commitengine implements commit creation, amendment, squashing,
// splitting, moving hunks across commits, and the rebase engine that keeps
// descendants consistent after any of those rewrites (L5, §4.5).
package commitengine

import "github.com/gitbutlerapp/vbranch-core/odb"

// Mapping records every old -> new commit rewrite produced by one
// operation, so callers can update any in-flight reference (other
// arguments of the same call, pending UI state) after the fact (§4.5.1,
// §9).
type Mapping struct {
	rewrites map[odb.ObjectId]odb.ObjectId
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{rewrites: map[odb.ObjectId]odb.ObjectId{}}
}

// Record adds one old -> new rewrite.
func (m *Mapping) Record(oldID, newID odb.ObjectId) {
	m.rewrites[oldID] = newID
}

// Merge folds another mapping's rewrites into this one, used when an
// operation touches more than one stack and each produces its own mapping
// (move_changes_between_commits, split_branch).
func (m *Mapping) Merge(other *Mapping) {
	for k, v := range other.rewrites {
		m.rewrites[k] = v
	}
}

// Resolve follows old -> new -> new' -> ... to the terminal id, stopping
// at a cycle rather than looping forever (§4.5.1's loop-safety note).
func (m *Mapping) Resolve(id odb.ObjectId) odb.ObjectId {
	visited := map[odb.ObjectId]bool{}
	cur := id
	for {
		next, ok := m.rewrites[cur]
		if !ok || next == cur {
			return cur
		}
		if visited[cur] {
			return cur
		}
		visited[cur] = true
		cur = next
	}
}

// All returns every old -> new pair recorded so far.
func (m *Mapping) All() map[odb.ObjectId]odb.ObjectId {
	out := make(map[odb.ObjectId]odb.ObjectId, len(m.rewrites))
	for k, v := range m.rewrites {
		out[k] = v
	}
	return out
}
