package types

// Actor is the authenticated caller as resolved by the identity collaborator.
type Actor struct {
	UserID string
	Admin  bool
}

func (a Actor) Role() string {
	if a.Admin {
		return "admin"
	}
	return "user"
}

// Owns reports whether the actor may operate on a resource owned by userID.
func (a Actor) Owns(userID string) bool {
	return a.Admin || (a.UserID != "" && a.UserID == userID)
}
