package odb

import "fmt"

// RemoteRef names a branch on a remote, e.g. {Remote: "origin", Branch: "main"}.
type RemoteRef struct {
	Remote string
	Branch string
}

func (r RemoteRef) String() string {
	return fmt.Sprintf("%s/%s", r.Remote, r.Branch)
}

// Target is the upstream commit integration and ahead/behind are measured
// against (§3).
type Target struct {
	Branch     RemoteRef
	RemoteURL  string
	SHA        ObjectId
	PushRemote string
}
