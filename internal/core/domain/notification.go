package domain

import "time"

// Notification is a persisted inbox entry. Exactly one of RecipientID and
// RecipientRole is set: admin-facing entries address the admin role.
type Notification struct {
	ID            string         `json:"id"`
	RecipientID   string         `json:"recipientId,omitempty"`
	RecipientRole Role           `json:"recipientRole,omitempty"`
	Kind          EventKind      `json:"kind"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Payload       map[string]any `json:"payload,omitempty"`
	Read          bool           `json:"read"`
	CreatedAt     time.Time      `json:"createdAt"`
}
