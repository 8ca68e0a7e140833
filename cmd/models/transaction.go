package models

import (
	"gorm.io/gorm"
)

// Transaction purposes.
const (
	PurposeCollaboration = "Collaboration"
	PurposeRefund        = "Refund"
)

type Transaction struct {
	gorm.Model
	UserID    uint    `gorm:"column:user_id;not null;index" json:"user_id"`
	Amount    float64 `gorm:"column:amount;not null" json:"amount"`
	Method    string  `gorm:"column:method;type:text;not null" json:"method"`
	Purpose   string  `gorm:"column:purpose;type:text;not null" json:"purpose"`
	Reference string  `gorm:"column:reference;size:255;index" json:"reference"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
