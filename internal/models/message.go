package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// RejectReason is the persisted reason an inbound message was not forwarded.
// Values are stored verbatim.
type RejectReason string

const (
	ReasonSpamScore      RejectReason = "spam_score"
	ReasonAddressBlocked RejectReason = "address_blocked"
)

// Valid reports whether r is one of the known reasons
func (r RejectReason) Valid() bool {
	return r == ReasonSpamScore || r == ReasonAddressBlocked
}

var (
	// ErrInconsistentRejection is returned when is_rejected and reason disagree
	ErrInconsistentRejection = errors.New("is_rejected must be set exactly when a reason is present")

	// ErrImmutableMessage is returned on any attempt to update an audit record
	ErrImmutableMessage = errors.New("audit records cannot be modified")
)

// Message is the audit record written for every processed webhook event
type Message struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	Subject           string        `gorm:"type:text" json:"subject"`
	From              string        `gorm:"column:from;size:512" json:"from"`
	AddressID         *uint         `gorm:"index" json:"address_id,omitempty"`
	SpamScore         *string       `gorm:"size:32" json:"spam_score,omitempty"`
	IsRejected        bool          `gorm:"not null;default:false;index" json:"is_rejected"`
	Reason            *RejectReason `gorm:"size:32;index" json:"reason"`
	Provider          string        `gorm:"size:32" json:"provider,omitempty"`
	ProviderMessageID string        `gorm:"size:255;index" json:"provider_message_id,omitempty"`
	CreatedAt         time.Time     `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	Address *Address `gorm:"foreignKey:AddressID;constraint:OnDelete:SET NULL" json:"address,omitempty"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// Reject marks the message as rejected for the given reason
func (m *Message) Reject(reason RejectReason) {
	m.IsRejected = true
	m.Reason = &reason
}

// BeforeCreate enforces is_rejected <=> reason != NULL
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.IsRejected != (m.Reason != nil) {
		return ErrInconsistentRejection
	}
	if m.Reason != nil && !m.Reason.Valid() {
		return ErrInconsistentRejection
	}
	return nil
}

// BeforeUpdate refuses updates, audit records are append-only
func (m *Message) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableMessage
}

// MessageFilter narrows audit record listings
type MessageFilter struct {
	AddressID *uint
	Rejected  *bool
	Reason    *RejectReason
}

// ReasonCount is one row of the per-reason audit summary
type ReasonCount struct {
	Reason *RejectReason `json:"reason"`
	Count  int64         `json:"count"`
}
