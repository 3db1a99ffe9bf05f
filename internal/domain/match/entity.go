package match

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusBlocked  Status = "BLOCKED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusBlocked, StatusRejected:
		return true
	}
	return false
}

// transitions lists the explicit moves. Creation into ACTIVE is not a transition.
var transitions = map[Status][]Status{
	StatusActive:  {StatusInactive, StatusBlocked},
	StatusPending: {StatusRejected},
}

// CanTransition reports whether from -> to is an allowed explicit move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Match represents the matches table.
// At most one ACTIVE row exists per (student_id, tutor_id), enforced by a partial unique index.
type Match struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	StudentID    uuid.UUID `gorm:"type:uuid;not null;index"`
	TutorID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Status       Status    `gorm:"type:match_status;not null"`
	MatchedAt    time.Time `gorm:"not null"`
	LastActivity time.Time `gorm:"not null"`
}

func (m Match) HasParticipant(userID uuid.UUID) bool {
	return m.StudentID == userID || m.TutorID == userID
}

// Counterpart returns the other participant. Callers check HasParticipant first.
func (m Match) Counterpart(userID uuid.UUID) uuid.UUID {
	if m.StudentID == userID {
		return m.TutorID
	}
	return m.StudentID
}

// PairKey is the natural key of the unordered pair.
func PairKey(studentID, tutorID uuid.UUID) string {
	return studentID.String() + ":" + tutorID.String()
}

type Order string

const (
	OrderRecent  Order = "recent"
	OrderCreated Order = "created"
)

// Filter narrows match listings.
type Filter struct {
	Status *Status
	Order  Order
	Page   int
	Limit  int
}
