package assign

import "errors"

// ErrLocked is returned when an assignment transfer would cross a hunk
// lock without the caller explicitly forcing it (§4.2, §7 StateConflict).
var ErrLocked = errors.New("assign: hunk is locked to another stack")
