package user

import (
	"time"

	"github.com/google/uuid"
)

// Role separates the two matched populations.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTutor   Role = "TUTOR"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTutor
}

// User represents the users table. Profile CRUD is owned elsewhere; this service only reads it.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role        Role      `gorm:"type:user_role;not null"`
	DisplayName string    `gorm:"not null"`
	AvatarURL   string
	IsActive    bool `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StudentTutor orders two users by role. ok is false when both share a role.
func StudentTutor(a, b User) (student User, tutor User, ok bool) {
	switch {
	case a.Role == RoleStudent && b.Role == RoleTutor:
		return a, b, true
	case a.Role == RoleTutor && b.Role == RoleStudent:
		return b, a, true
	default:
		return User{}, User{}, false
	}
}
