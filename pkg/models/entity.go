package models

import "time"

// Entity is a marketplace account as seen by the audience resolver:
// an owner, a renter, or both.
type Entity struct {
	ID         string                 `json:"id"`
	Kind       string                 `json:"kind"` // "owner", "renter", "account"
	City       string                 `json:"city,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

const (
	EntityKindOwner   = "owner"
	EntityKindRenter  = "renter"
	EntityKindAccount = "account"
)
