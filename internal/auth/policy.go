package auth

// Allows reports whether the principal owns the resource. It is the only
// rule for mutations: update, delete, toggles, attachments and self-only
// account operations.
func Allows(principalID, ownerID uint64) bool {
	return principalID != 0 && principalID == ownerID
}

// CanView is the separate read rule for tasks: owners always, anyone else
// only when the task is public.
func CanView(principalID, ownerID uint64, public bool) bool {
	return Allows(principalID, ownerID) || public
}
