package models

import "time"

// Roles that unlock deletion of other users' content.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User is a registered account. Profile fields are mutable, identity is not.
type User struct {
	ID        int       `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Elevated reports whether the user may delete content authored by others.
func (u User) Elevated() bool {
	return u.Role == RoleAdmin || u.Role == RoleModerator
}
