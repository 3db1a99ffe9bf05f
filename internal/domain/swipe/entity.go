package swipe

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionLike      Action = "LIKE"
	ActionDislike   Action = "DISLIKE"
	ActionSuperLike Action = "SUPER_LIKE"
)

func (a Action) Valid() bool {
	switch a {
	case ActionLike, ActionDislike, ActionSuperLike:
		return true
	}
	return false
}

// Swipe represents the swipes table. One row per (actor, target); a repeat swipe overwrites Action.
type Swipe struct {
	ActorID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	TargetID  uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Action    Action    `gorm:"type:swipe_action;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pair is a student/tutor couple found by the reconciliation scan.
type Pair struct {
	StudentID uuid.UUID
	TutorID   uuid.UUID
}
