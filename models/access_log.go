package models

import "time"

// AccessLog records a frontend login.
type AccessLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	LoginTime time.Time `json:"login_time" gorm:"autoCreateTime"`

	Username  string `json:"username" gorm:"index;not null"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// TableName sets the explicit table name.
func (AccessLog) TableName() string {
	return "access_logs"
}
