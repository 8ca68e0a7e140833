package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TimeSlots is a list of time-of-day strings ("18:00 - 19:00") serialized
// as JSON in a single text column.
type TimeSlots []string

func (t TimeSlots) Value() (driver.Value, error) {
	if t == nil {
		t = TimeSlots{}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *TimeSlots) Scan(value interface{}) error {
	if value == nil {
		*t = TimeSlots{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported type for TimeSlots: %T", value)
	}
}

// Collaboration payment states.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// Schedule-change request states. A request is created pending and resolved
// exactly once, to approved or rejected.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// Roles a schedule-change request can originate from.
const (
	RequestedByMentor = "mentor"
	RequestedByMentee = "mentee"
)

// Collaboration is an active mentor-mentee engagement with a recurring
// weekly session slot.
type Collaboration struct {
	gorm.Model
	MentorID uint `gorm:"column:mentor_id;not null;index" json:"mentor_id"`
	UserID   uint `gorm:"column:user_id;not null;index" json:"user_id"`

	StartDate time.Time `gorm:"column:start_date;not null" json:"start_date"`
	EndDate   time.Time `gorm:"column:end_date;not null" json:"end_date"`
	SlotDay   string    `gorm:"column:slot_day;size:20;not null" json:"slot_day"`
	SlotTimes TimeSlots `gorm:"column:slot_times;type:text;not null" json:"slot_times"`

	Price         float64 `gorm:"column:price;not null" json:"price"`
	PaymentStatus string  `gorm:"column:payment_status;size:20;not null;default:'pending'" json:"payment_status"`
	PaymentID     string  `gorm:"column:payment_id;size:255" json:"payment_id,omitempty"`
	IsCancelled   bool    `gorm:"column:is_cancelled;default:false" json:"is_cancelled"`
	RefundAmount  float64 `gorm:"column:refund_amount;default:0" json:"refund_amount"`

	Mentor *Mentor `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	UnavailabilityRequests []UnavailabilityRequest `gorm:"foreignKey:CollaborationID" json:"unavailability_requests,omitempty"`
	SlotChangeRequests     []SlotChangeRequest     `gorm:"foreignKey:CollaborationID" json:"slot_change_requests,omitempty"`
}

func (Collaboration) TableName() string {
	return "collaborations"
}

// UnavailabilityRequest is a batch of unavailable dates proposed by one party,
// carrying a single approval state and the end date that would result from
// approving it.
type UnavailabilityRequest struct {
	gorm.Model
	CollaborationID  uint      `gorm:"column:collaboration_id;not null;index" json:"collaboration_id"`
	RequestedBy      string    `gorm:"column:requested_by;size:10;not null" json:"requested_by"`
	RequesterID      uint      `gorm:"column:requester_id;not null" json:"requester_id"`
	ApproverID       uint      `gorm:"column:approver_id;not null" json:"approver_id"`
	Status           string    `gorm:"column:status;size:10;not null;default:'pending'" json:"status"`
	ProjectedEndDate time.Time `gorm:"column:projected_end_date;not null" json:"projected_end_date"`

	Dates []UnavailableDate `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"dates"`
}

type UnavailableDate struct {
	gorm.Model
	RequestID uint      `gorm:"column:request_id;not null;index" json:"request_id"`
	Date      time.Time `gorm:"column:date;not null" json:"date"`
	Reason    string    `gorm:"column:reason;type:text;not null" json:"reason"`
}

// SlotChangeRequest is a batch of per-date time slot replacements, pending
// counterparty approval. The canonical slot is untouched until approval.
type SlotChangeRequest struct {
	gorm.Model
	CollaborationID uint   `gorm:"column:collaboration_id;not null;index" json:"collaboration_id"`
	RequestedBy     string `gorm:"column:requested_by;size:10;not null" json:"requested_by"`
	RequesterID     uint   `gorm:"column:requester_id;not null" json:"requester_id"`
	ApproverID      uint   `gorm:"column:approver_id;not null" json:"approver_id"`
	Status          string `gorm:"column:status;size:10;not null;default:'pending'" json:"status"`

	Changes []SlotChange `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"changes"`
}

type SlotChange struct {
	gorm.Model
	RequestID uint      `gorm:"column:request_id;not null;index" json:"request_id"`
	Date      time.Time `gorm:"column:date;not null" json:"date"`
	NewTimes  TimeSlots `gorm:"column:new_times;type:text;not null" json:"new_times"`
}
