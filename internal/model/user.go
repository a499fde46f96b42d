package model

import "strings"

// Roles
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User account (users)
type User struct {
	UserID           string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	DisplayName      string `gorm:"type:varchar(100);not null"                     json:"display_name"`
	DisplayNameLower string `gorm:"type:varchar(100);not null;index"               json:"-"`
	Email            string `gorm:"type:varchar(255);not null;uniqueIndex"         json:"email"`
	PasswordHash     string `gorm:"type:varchar(255);not null"                     json:"-"`
	Role             string `gorm:"type:varchar(20);not null;default:'member'"     json:"role"`
	BaseModel
}

// TableName table name
func (User) TableName() string { return "users" }

// SetDisplayName trims the name and keeps the lowercase match key in sync
func (u *User) SetDisplayName(name string) {
	u.DisplayName = strings.TrimSpace(name)
	u.DisplayNameLower = NormalizeName(u.DisplayName)
}

// IsAdmin reports the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeName is the case/whitespace-insensitive form used for matching
// participant names to accounts.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
