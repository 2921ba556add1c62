package model

import (
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User 管理端的操作员账户
type User struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Username  string     `json:"username" gorm:"uniqueIndex;size:64;not null"`
	Password  string     `json:"-" gorm:"not null"`
	Email     string     `json:"email" gorm:"size:255"`
	Role      string     `json:"role" gorm:"size:16;default:'user'"`
	Status    string     `json:"status" gorm:"size:16;default:'active'"`
	CreatedAt time.Time  `json:"createdat"`
	UpdatedAt time.Time  `json:"updatedat"`
	LastLogin *time.Time `json:"lastlogin"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) Active() bool {
	return u.Status == "" || u.Status == "active"
}
