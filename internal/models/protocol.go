package models

import (
	"time"
)

// Protocol categories
const (
	CategoryHead      = "head"
	CategoryNeck      = "neck"
	CategoryChest     = "chest"
	CategoryAbdomen   = "abdomen"
	CategoryLowerLimb = "lower_limb"
	CategoryUpperLimb = "upper_limb"
	CategorySpecial   = "special"
)

// ProtocolCategories lists the categories in display order
var ProtocolCategories = []string{
	CategoryHead,
	CategoryNeck,
	CategoryChest,
	CategoryAbdomen,
	CategoryLowerLimb,
	CategoryUpperLimb,
	CategorySpecial,
}

// ValidCategories defines allowed protocol categories
var ValidCategories = map[string]bool{
	CategoryHead:      true,
	CategoryNeck:      true,
	CategoryChest:     true,
	CategoryAbdomen:   true,
	CategoryLowerLimb: true,
	CategoryUpperLimb: true,
	CategorySpecial:   true,
}

// Protocol is a standalone entry of the protocol library
type Protocol struct {
	ID        int64     `json:"id" db:"id"`
	Category  string    `json:"category" db:"category"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Image     string    `json:"image,omitempty" db:"image"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
