package models

import (
	"gorm.io/gorm"
)

// Group join request states.
const (
	JoinPending  = "Pending"
	JoinAccepted = "Accepted"
	JoinRejected = "Rejected"
)

// Group is a mentor-led cohort that mentees can request to join.
type Group struct {
	gorm.Model
	MentorID    uint      `gorm:"column:mentor_id;not null;index" json:"mentor_id"`
	Name        string    `gorm:"column:name;size:255;not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Category    string    `gorm:"column:category;size:50" json:"category"`
	Price       float64   `gorm:"column:price;not null" json:"price"`
	MaxMembers  int       `gorm:"column:max_members;default:0" json:"max_members"`
	SlotDay     string    `gorm:"column:slot_day;size:20" json:"slot_day"`
	SlotTimes   TimeSlots `gorm:"column:slot_times;type:text" json:"slot_times"`

	Mentor  *Mentor       `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

type GroupMember struct {
	gorm.Model
	GroupID uint `gorm:"column:group_id;not null;uniqueIndex:idx_group_user" json:"group_id"`
	UserID  uint `gorm:"column:user_id;not null;uniqueIndex:idx_group_user" json:"user_id"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type GroupJoinRequest struct {
	gorm.Model
	GroupID uint   `gorm:"column:group_id;not null;index" json:"group_id"`
	UserID  uint   `gorm:"column:user_id;not null;index" json:"user_id"`
	Message string `gorm:"column:message;type:text" json:"message"`
	Status  string `gorm:"column:status;size:20;not null;default:'Pending'" json:"status"`

	Group *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	User  *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
