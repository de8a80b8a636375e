package models

import "time"

// UserKeyword is a user-registered highlight keyword. The same keyword text
// may appear in several categories, but only once per category (a NULL
// category counts as its own category).
type UserKeyword struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Keyword  string  `json:"keyword" gorm:"index:idx_keyword_category,unique;not null"`
	Category *string `json:"category,omitempty" gorm:"index:idx_keyword_category,unique"`
	Color    string  `json:"color" gorm:"default:'#3b82f6'"`
}

// TableName sets the explicit table name.
func (UserKeyword) TableName() string {
	return "user_keywords"
}
