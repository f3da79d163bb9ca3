package model

import "time"

// Send outcome constants as stored in the send history.
const (
	SendStatusSent   = "sent"
	SendStatusFailed = "failed"
)

// DraftRecord is a persisted draft buffer. Drafts are saved on edit and
// removed once a send succeeds or the draft is killed.
type DraftRecord struct {
	ID              string         `json:"id" db:"id"`
	Name            string         `json:"name" db:"name"`
	Account         string         `json:"account" db:"account"`
	Text            string         `json:"text" db:"text"`
	DeliveryMethod  string         `json:"delivery_method" db:"delivery_method"`
	DeliveryOptions map[string]any `json:"delivery_options,omitempty" db:"-"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// SendRecord is one entry of the send history.
type SendRecord struct {
	ID        string    `json:"id" db:"id"`
	DraftID   string    `json:"draft_id" db:"draft_id"`
	MessageID string    `json:"message_id" db:"message_id"`
	Subject   string    `json:"subject" db:"subject"`
	Method    string    `json:"method" db:"method"`
	Status    string    `json:"status" db:"status"`
	Error     string    `json:"error" db:"error"`
	Warning   string    `json:"warning" db:"warning"`
	SentAt    time.Time `json:"sent_at" db:"sent_at"`
}

// Failed reports whether the attempt did not reach the transport.
func (r SendRecord) Failed() bool {
	return r.Status == SendStatusFailed
}
