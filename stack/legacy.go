package stack

import "errors"

// ErrNotSupported is returned by adapter seams that exist for a future
// feature but aren't implemented yet.
var ErrNotSupported = errors.New("stack: not supported")

// ImportLegacy is the adapter seam for importing the older flat
// branch-list layout into the stack-of-heads model (SPEC_FULL.md §D). No
// installation in the wild still writes that layout, so this is
// currently a stub; a real importer would read the legacy rows and
// synthesize single-head Stacks from them.
func ImportLegacy(_ []byte) ([]Stack, error) {
	return nil, ErrNotSupported
}
