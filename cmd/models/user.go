package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FullName              string    `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email                 string    `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash          string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role                  string    `gorm:"column:role;size:50;not null" json:"role"`
	Phone                 string    `gorm:"column:phone;size:20;not null" json:"phone"`
	EmailVerified         bool      `gorm:"column:email_verified;default:false" json:"email_verified"`
	Status                string    `gorm:"column:status;size:50;not null;default:inactive" json:"status"`
	Refresh               string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`
	ProfilePicturePath    string    `gorm:"column:profile_picture_path;size:255" json:"profile_picture_path"`
	EmailVerificationCode string    `gorm:"size:6" json:"-"`
	VerificationExpiry    time.Time `json:"-"`

	Mentor *Mentor `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"mentor,omitempty"`
}

// User roles.
const (
	RoleMentee = "mentee"
	RoleMentor = "mentor"
	RoleAdmin  = "admin"
)

// Mentor approval states, admin-controlled.
const (
	MentorPending  = "Pending"
	MentorAccepted = "Accepted"
	MentorRejected = "Rejected"
)

type Mentor struct {
	gorm.Model
	UserID     uint    `gorm:"column:user_id;not null" json:"user_id"`
	Expertise  string  `gorm:"column:expertise;size:255" json:"expertise"`
	Bio        string  `gorm:"column:bio;type:text" json:"bio"`
	HourlyRate float64 `gorm:"column:hourly_rate;default:0" json:"hourly_rate"`
	IsAccepted string  `gorm:"column:is_accepted;size:20;not null;default:'Pending'" json:"is_accepted"`

	AverageRating float64 `gorm:"column:average_rating;default:0" json:"average_rating"`
	TotalRatings  int     `gorm:"column:total_ratings;default:0" json:"total_ratings"`

	CertificationFiles []CertificationFile `gorm:"foreignKey:MentorID;constraint:OnDelete:CASCADE" json:"certification_files"`
	User               *User               `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Mentor) TableName() string {
	return "mentors"
}

type CertificationFile struct {
	gorm.Model
	MentorID uint   `gorm:"column:mentor_id;not null" json:"mentor_id"`
	FileName string `gorm:"column:file_name;size:255" json:"file_name"`
	FilePath string `gorm:"column:file_path;size:500;not null" json:"file_path"`
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null"`
	Token     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
