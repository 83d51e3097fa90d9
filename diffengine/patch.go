package diffengine

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/gitbutlerapp/vbranch-core/odb"
)

// PatchKind tags the UnifiedPatch variant (§3).
type PatchKind int

const (
	PatchKindHunks PatchKind = iota
	PatchKindBinary
	PatchKindTooLarge
)

// Hunk is one `{ header, diff_text }` entry (§3). diff_text holds the
// standard unified-diff body lines (` `, `-`, `+` prefixed), without the
// `@@ ... @@` header line itself (that's reconstructed from Header).
type Hunk struct {
	Header   HunkHeader
	DiffText string
}

// UnifiedPatch is the tagged result of diffing one TreeChange (§3).
type UnifiedPatch struct {
	Kind PatchKind

	// PatchKindHunks
	Hunks                            []Hunk
	LinesAdded                       int
	LinesRemoved                     int
	IsResultOfBinaryToTextConversion bool

	// PatchKindBinary
	NewBlobID odb.ObjectId

	// PatchKindTooLarge
	Bytes int64
}

// ErrSubmoduleChange is returned when patching a Commit-kind TreeChange:
// submodule changes surface as Modification but cannot be diffed as text
// or bytes (§4.1).
var ErrSubmoduleChange = errors.New("diffengine: can only diff blobs and links")

const defaultMaxPatchBytes = 10 << 20 // 10 MiB, matches typical git core.bigFileThreshold usage

// Limits bounds how large a blob unified_patch will render as text before
// falling back to TooLarge.
type Limits struct {
	MaxBytes int64
}

func (l Limits) maxBytes() int64 {
	if l.MaxBytes > 0 {
		return l.MaxBytes
	}
	return defaultMaxPatchBytes
}

// UnifiedPatchFor computes the patch for one TreeChange (§4.1's
// unified_patch). oldContent/newContent are resolved by the caller (nil for
// the missing side of an addition/deletion); for untracked worktree content
// the caller must have already written it into the ODB so NewBlobID is
// valid for the Binary case.
func UnifiedPatchFor(change TreeChange, oldContent, newContent []byte, newBlobID odb.ObjectId, contextLines int, limits Limits) (*UnifiedPatch, error) {
	if kindIsSubmodule(change) {
		return nil, ErrSubmoduleChange
	}

	size := int64(len(oldContent) + len(newContent))
	if size > limits.maxBytes() {
		return &UnifiedPatch{Kind: PatchKindTooLarge, Bytes: size}, nil
	}

	wasBinary := looksBinary(oldContent)
	isBinary := looksBinary(newContent)
	if wasBinary || isBinary {
		if wasBinary && isBinary {
			return &UnifiedPatch{Kind: PatchKindBinary, NewBlobID: newBlobID}, nil
		}
		// One side is text, the other binary: still reported as Binary,
		// but flagged as a binary<->text conversion so callers (e.g. a
		// future UI) can choose to still attempt a text render.
		return &UnifiedPatch{Kind: PatchKindBinary, NewBlobID: newBlobID, IsResultOfBinaryToTextConversion: true}, nil
	}

	hunks, added, removed := diffHunks(string(oldContent), string(newContent), contextLines)
	return &UnifiedPatch{
		Kind:         PatchKindHunks,
		Hunks:        hunks,
		LinesAdded:   added,
		LinesRemoved: removed,
	}, nil
}

func kindIsSubmodule(c TreeChange) bool {
	if c.State != nil && c.State.Kind == odb.KindCommit {
		return true
	}
	if c.PreviousState != nil && c.PreviousState.Kind == odb.KindCommit {
		return true
	}
	return false
}

func looksBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	probe := content
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

type lineOp struct {
	kind byte // ' ', '-', '+'
	text string
}

// diffHunks runs a line-oriented Myers diff (go-diff's DiffLinesToChars
// trick, the same approach go-git's own patch rendering uses) and groups
// the result into unified-diff hunks with `contextLines` of context.
func diffHunks(oldText, newText string, contextLines int) ([]Hunk, int, int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var ops []lineOp
	for _, d := range diffs {
		text := d.Text
		text = strings.TrimSuffix(text, "\n")
		if text == "" {
			continue
		}
		splitLines := strings.Split(text, "\n")
		var kind byte
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			kind = ' '
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		}
		for _, l := range splitLines {
			ops = append(ops, lineOp{kind: kind, text: l})
		}
	}

	return groupHunks(ops, contextLines)
}

// groupHunks converts a flat list of equal/delete/insert line ops into
// hunks, merging changes that are within 2*contextLines of each other so
// a hunk's context doesn't split unnecessarily.
func groupHunks(ops []lineOp, contextLines int) ([]Hunk, int, int) {
	type change struct {
		start, end int // indices into ops, end exclusive
	}

	var changes []change
	i := 0
	for i < len(ops) {
		if ops[i].kind == ' ' {
			i++
			continue
		}
		start := i
		for i < len(ops) && ops[i].kind != ' ' {
			i++
		}
		changes = append(changes, change{start, i})
	}
	if len(changes) == 0 {
		return nil, 0, 0
	}

	// merge changes whose context windows overlap
	merged := []change{changes[0]}
	for _, c := range changes[1:] {
		last := &merged[len(merged)-1]
		gapStart := last.end
		gapEnd := c.start
		if gapEnd-gapStart <= 2*contextLines {
			last.end = c.end
		} else {
			merged = append(merged, c)
		}
	}

	var hunks []Hunk
	var added, removed int
	oldLine, newLine := 0, 0 // 0-based running position before ops[0]

	// precompute old/new line numbers at each op boundary
	oldPos := make([]int, len(ops)+1)
	newPos := make([]int, len(ops)+1)
	for idx, op := range ops {
		oldPos[idx] = oldLine
		newPos[idx] = newLine
		switch op.kind {
		case ' ':
			oldLine++
			newLine++
		case '-':
			oldLine++
		case '+':
			newLine++
		}
	}
	oldPos[len(ops)] = oldLine
	newPos[len(ops)] = newLine

	for _, c := range merged {
		ctxStart := c.start - contextLines
		if ctxStart < 0 {
			ctxStart = 0
		}
		ctxEnd := c.end + contextLines
		if ctxEnd > len(ops) {
			ctxEnd = len(ops)
		}

		var buf strings.Builder
		oldLines, newLines := 0, 0
		for _, op := range ops[ctxStart:ctxEnd] {
			buf.WriteByte(op.kind)
			buf.WriteString(op.text)
			buf.WriteByte('\n')
			switch op.kind {
			case ' ':
				oldLines++
				newLines++
			case '-':
				oldLines++
				removed++
			case '+':
				newLines++
				added++
			}
		}

		oldStart := oldPos[ctxStart] + 1
		newStart := newPos[ctxStart] + 1
		if oldLines == 0 {
			oldStart = oldPos[ctxStart]
		}
		if newLines == 0 {
			newStart = newPos[ctxStart]
		}

		hunks = append(hunks, Hunk{
			Header: HunkHeader{
				OldStart: oldStart,
				OldLines: oldLines,
				NewStart: newStart,
				NewLines: newLines,
			},
			DiffText: buf.String(),
		})
	}

	return hunks, added, removed
}

// ApplyHunk applies one forward hunk diff to oldContent, returning the
// patched content. Used both by synthesize_tree (§4.5) and by the
// patch-round-trip property test (§8).
func ApplyHunk(oldContent []byte, h Hunk) ([]byte, error) {
	oldLines := splitKeepEmpty(oldContent)

	start := h.Header.OldStart
	if h.Header.OldLines == 0 {
		// pure insertion: start already points at the line to insert before
		// (0 means "before the first line").
	} else {
		start = h.Header.OldStart - 1
	}
	if start < 0 || start > len(oldLines) {
		return nil, fmt.Errorf("diffengine: hunk start %d out of range (file has %d lines)", h.Header.OldStart, len(oldLines))
	}

	var newLines []string
	newLines = append(newLines, oldLines[:start]...)

	rest := oldLines[start:]
	consumed := 0
	for _, line := range strings.Split(strings.TrimSuffix(h.DiffText, "\n"), "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case ' ', '-':
			if consumed >= len(rest) {
				return nil, fmt.Errorf("diffengine: hunk references line past end of file")
			}
			if rest[consumed] != line[1:] {
				return nil, fmt.Errorf("diffengine: hunk context mismatch at line %d", start+consumed+1)
			}
			consumed++
			if line[0] == ' ' {
				newLines = append(newLines, line[1:])
			}
		case '+':
			newLines = append(newLines, line[1:])
		}
	}
	newLines = append(newLines, rest[consumed:]...)

	return joinLines(newLines), nil
}

func splitKeepEmpty(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	text := string(content)
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}
