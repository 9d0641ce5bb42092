package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/miravelle/modora-backend/pkg/enums"
)

// User is the slice of the account table the lifecycle engine reads: an
// identity, a role and the email surfaced in admin order listings.
// Credential management lives outside this service.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string         `gorm:"column:email;not null;uniqueIndex"`
	Role      enums.UserRole `gorm:"column:role;type:text;not null;default:'user'"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
