package models

import "time"

// Tenant is provisioned outside this service; orders only need to know it exists.
type Tenant struct {
	ID        string    `json:"tenant_id" gorm:"primaryKey;type:varchar(64)"`
	Name      string    `json:"name" gorm:"not null"`
	Blocked   bool      `json:"blocked" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
