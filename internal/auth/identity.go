package auth

import "messaging-service/internal/models"

// Identity is the outcome of credential resolution. A failed or missing
// credential resolves to the anonymous identity, never to an error: downstream
// gates treat "no identity" as a state of its own so unauthenticated traffic
// still shows up in the audit trail.
type Identity struct {
	User      models.User
	Anonymous bool
}

// AnonymousIdentity is the sentinel for unauthenticated requests.
func AnonymousIdentity() Identity {
	return Identity{Anonymous: true}
}

// Resolved wraps a verified user.
func Resolved(user models.User) Identity {
	return Identity{User: user}
}

// Label names the identity in audit output.
func (i Identity) Label() string {
	if i.Anonymous {
		return "Anonymous"
	}
	return i.User.Username
}
