package models

import (
	"time"

	"gorm.io/gorm"
)

// Mentorship request states, mentor-controlled.
const (
	MentorshipPending  = "Pending"
	MentorshipAccepted = "Accepted"
	MentorshipRejected = "Rejected"
)

// MentorshipRequest is a mentee's proposal for a recurring collaboration.
// Acceptance makes it payable; payment creates the Collaboration.
type MentorshipRequest struct {
	gorm.Model
	UserID   uint `gorm:"column:user_id;not null;index" json:"user_id"`
	MentorID uint `gorm:"column:mentor_id;not null;index" json:"mentor_id"`

	Message       string    `gorm:"column:message;type:text" json:"message"`
	StartDate     time.Time `gorm:"column:start_date;not null" json:"start_date"`
	SlotDay       string    `gorm:"column:slot_day;size:20;not null" json:"slot_day"`
	SlotTimes     TimeSlots `gorm:"column:slot_times;type:text;not null" json:"slot_times"`
	DurationWeeks int       `gorm:"column:duration_weeks;not null" json:"duration_weeks"`
	Amount        float64   `gorm:"column:amount;not null" json:"amount"`

	IsAccepted    string `gorm:"column:is_accepted;size:20;not null;default:'Pending'" json:"is_accepted"`
	PaymentStatus string `gorm:"column:payment_status;size:20;not null;default:'pending'" json:"payment_status"`
	PaymentID     string `gorm:"column:payment_id;size:255" json:"payment_id,omitempty"`

	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Mentor *Mentor `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
}

func (MentorshipRequest) TableName() string {
	return "mentorship_requests"
}
