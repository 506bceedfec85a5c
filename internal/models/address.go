package models

import (
	"strings"
	"time"
)

// Address represents a masked recipient address the system has seen mail for
type Address struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	IsBlocked bool      `gorm:"not null;default:false" json:"is_blocked"`
	DomainID  *uint     `gorm:"index" json:"domain_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Domain *Domain `gorm:"foreignKey:DomainID" json:"domain,omitempty"`
}

// TableName returns the table name for Address
func (Address) TableName() string {
	return "addresses"
}

// NormalizeEmail returns the canonical form addresses are stored under
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DomainPart returns the part after the last @ of an email address, or "" if there is none
func DomainPart(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	return email[i+1:]
}
