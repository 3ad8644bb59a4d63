// Package conflict decides whether a local and a remote version of an entity
// diverged and reconciles them: detection, three-way field merge and the
// configurable resolution policy.
package conflict

import "github.com/iudanet/gophsync/internal/models"

// HasConflict reports whether remote diverged from a pending local edit.
//
// A local entity without pending changes never conflicts: any remote version
// is a fast-forward. A pending local edit conflicts when the remote moved past
// the version the edit was based on, unless the remote is the local version
// itself echoed back (same version and content). Convergent edits under
// different versions are not filtered here; Merge absorbs them.
func HasConflict(local, remote *models.SyncableEntity) bool {
	if local == nil || remote == nil || !local.IsPendingSync {
		return false
	}
	if remote.Version <= local.BaseVersion {
		// nothing happened remotely since the edit's ancestor
		return false
	}
	if remote.Version == local.Version && SameContent(local, remote) {
		return false
	}
	return true
}
