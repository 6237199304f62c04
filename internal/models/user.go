package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID           uint      `json:"user_id" gorm:"primaryKey"`
	TenantID     string    `json:"tenant_id" gorm:"not null;index;uniqueIndex:idx_users_tenant_username"`
	Username     string    `json:"username" gorm:"not null;uniqueIndex:idx_users_tenant_username"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         UserRole  `json:"role" gorm:"type:varchar(16);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserRole string

const (
	RoleManager  UserRole = "manager"
	RoleKitchen  UserRole = "kitchen"
	RoleRider    UserRole = "rider"
	RoleCustomer UserRole = "customer"
)

// IsStaff reports whether the role may open a staff channel.
func (r UserRole) IsStaff() bool {
	return r == RoleManager || r == RoleKitchen || r == RoleRider
}

// SetPassword stores a bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashed)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
