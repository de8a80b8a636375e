package models

import "time"

// UserFavorite marks a paper as favorite for one user. Unique per
// (username, paper_id) pair; distinct from the legacy global favorite
// flag on the paper row.
type UserFavorite struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Username string `json:"username" gorm:"index:idx_user_paper_favorite,unique;not null"`
	PaperID  string `json:"paper_id" gorm:"index:idx_user_paper_favorite,unique;not null"`
}

// TableName sets the explicit table name.
func (UserFavorite) TableName() string {
	return "user_favorites"
}
