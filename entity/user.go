package entity

import "fmt"

// User is a chat participant identified by an external (messenger) id.
type User struct {
	Base

	ExternalID int64   `bun:"external_id,notnull,unique" json:"external_id" msgpack:"external_id"`
	FirstName  string  `bun:"first_name,notnull" json:"first_name" msgpack:"first_name"`
	Username   *string `bun:"username" json:"username,omitempty" msgpack:"username"`
}

func (u *User) String() string {
	handle := "<nil>"
	if u.Username != nil {
		handle = *u.Username
	}
	return fmt.Sprintf("User(id=%d, external_id=%d, first_name=%q, username=%q)", u.ID, u.ExternalID, u.FirstName, handle)
}
