package model

import "time"

// LinkPrecedence is the role of a contact within its identity group.
type LinkPrecedence string

const (
	// Primary marks the canonical, oldest contact of an identity group.
	Primary LinkPrecedence = "primary"
	// Secondary marks an alias that points to a primary via LinkedId.
	Secondary LinkPrecedence = "secondary"
)

// Contact is one row of the identity graph. Email and Phone are optional, but at least one of
// them is set for every stored contact. LinkedId is set if and only if the contact is a secondary.
type Contact struct {
	Id             int64          `json:"id"                    db:"id"`
	Email          *string        `json:"email,omitempty"       db:"email"`
	Phone          *string        `json:"phoneNumber,omitempty" db:"phone_number"`
	LinkedId       *int64         `json:"linkedId,omitempty"    db:"linked_id"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence"        db:"link_precedence"`
	CreatedAt      time.Time      `json:"createdAt"             db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt"             db:"updated_at"`
	DeletedAt      *time.Time     `json:"deletedAt,omitempty"   db:"deleted_at"`
}

// IsPrimary reports whether the contact is the root of its identity group.
func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == Primary
}

// OlderThan reports whether c is senior to other. Creation time decides; the lower id breaks
// ties between contacts created in the same instant.
func (c Contact) OlderThan(other Contact) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.Id < other.Id
}

// Trail is the consolidated view of an identity group: the primary, the union of all known
// emails and phone numbers, and the ids of all secondaries.
type Trail struct {
	PrimaryContactId    int64
	Emails              []string
	PhoneNumbers        []string
	SecondaryContactIds []int64
}
