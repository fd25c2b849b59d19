package entity

import (
	"fmt"
	"strings"
	"time"
)

// ComplaintCategory groups complaints by the service they concern
type ComplaintCategory string

const (
	CategoryRoad        ComplaintCategory = "ROAD"
	CategoryWater       ComplaintCategory = "WATER"
	CategoryElectricity ComplaintCategory = "ELECTRICITY"
	CategorySanitation  ComplaintCategory = "SANITATION"
	CategoryStreetLight ComplaintCategory = "STREET_LIGHT"
	CategoryOther       ComplaintCategory = "OTHER"
)

// ParseComplaintCategory accepts any case
func ParseComplaintCategory(s string) (ComplaintCategory, error) {
	c := ComplaintCategory(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryRoad, CategoryWater, CategoryElectricity, CategorySanitation, CategoryStreetLight, CategoryOther:
		return c, nil
	default:
		return "", fmt.Errorf("unknown complaint category %q", s)
	}
}

// ComplaintStatus is the workflow state of a complaint
type ComplaintStatus string

const (
	StatusSubmitted  ComplaintStatus = "SUBMITTED"
	StatusInProgress ComplaintStatus = "IN_PROGRESS"
	StatusCompleted  ComplaintStatus = "COMPLETED"
	StatusRejected   ComplaintStatus = "REJECTED"
)

// ParseComplaintStatus accepts any case
func ParseComplaintStatus(s string) (ComplaintStatus, error) {
	st := ComplaintStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusSubmitted, StatusInProgress, StatusCompleted, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown complaint status %q", s)
	}
}

// Complaint is a citizen report
type Complaint struct {
	ID                  uint              `gorm:"primaryKey" json:"id"`
	UserID              uint              `gorm:"not null;index" json:"user_id"`
	User                *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Category            ComplaintCategory `gorm:"size:30;not null" json:"category"`
	Description         string            `gorm:"type:text;not null" json:"description"`
	Location            string            `gorm:"size:255;not null" json:"location"`
	LocationDescription string            `gorm:"size:500;not null;default:''" json:"location_description"`
	Photo               string            `gorm:"size:255;not null;default:''" json:"photo,omitempty"`
	Status              ComplaintStatus   `gorm:"size:20;not null;default:'SUBMITTED';index" json:"status"`
	AssignedVendorID    *uint             `json:"assigned_vendor_id,omitempty"`
	AdminNotes          string            `gorm:"type:text;not null;default:''" json:"admin_notes,omitempty"`
	CreatedAt           time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// TableName sets the gorm table name
func (Complaint) TableName() string {
	return "complaints"
}
