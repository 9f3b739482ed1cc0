package model

import "time"

// User is an account owner, keyed externally by the identity provider's subject.
type User struct {
	CreatedAt  time.Time
	ExternalID string
	ID         int64
}
