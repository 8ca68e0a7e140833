package models

import (
	"gorm.io/gorm"
)

// Feedback is a mentee's rating of a mentor after (or during) a
// collaboration. One row per user per mentor.
type Feedback struct {
	gorm.Model
	UserID   uint    `gorm:"column:user_id;not null;uniqueIndex:idx_feedback_user_mentor" json:"user_id"`
	MentorID uint    `gorm:"column:mentor_id;not null;uniqueIndex:idx_feedback_user_mentor" json:"mentor_id"`
	Rating   float64 `gorm:"column:rating;not null" json:"rating"`
	Comment  string  `gorm:"column:comment;type:text" json:"comment"`

	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Mentor *Mentor `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
}

func (Feedback) TableName() string {
	return "feedbacks"
}
