package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"tutor-match/internal/domain/conversation"
	"tutor-match/internal/domain/match"
	"tutor-match/internal/domain/message"
	"tutor-match/internal/domain/swipe"
	"tutor-match/internal/domain/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// seedNamespace keeps seeded ids stable so re-running seed-dev is a no-op.
var seedNamespace = uuid.MustParse("6f1c4a52-3b7e-4d8a-9c61-2e5f0b7d9a14")

// SeedConfig holds configuration for seeding the database
type SeedConfig struct {
	StudentCount int
	TutorCount   int
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		StudentCount: 3,
		TutorCount:   3,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Students      []user.User
	Tutors        []user.User
	Matches       []match.Match
	Conversations []conversation.Conversation
	Messages      []message.Message
}

// SeedDevelopment creates demo students and tutors. The first student and tutor like each other
// and share an active match with a short conversation; the second student has a pending like on the
// first tutor.
func SeedDevelopment(db *gorm.DB, cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	if cfg.StudentCount < 2 || cfg.TutorCount < 1 {
		return nil, fmt.Errorf("need at least 2 students and 1 tutor, got %d/%d", cfg.StudentCount, cfg.TutorCount)
	}

	result := &SeedResult{}
	log.Println("Starting database seeding...")

	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if result.Students, err = seedUsers(tx, user.RoleStudent, "Student", cfg.StudentCount); err != nil {
			return fmt.Errorf("failed to seed students: %w", err)
		}
		if result.Tutors, err = seedUsers(tx, user.RoleTutor, "Tutor", cfg.TutorCount); err != nil {
			return fmt.Errorf("failed to seed tutors: %w", err)
		}

		s1, s2, t1 := result.Students[0], result.Students[1], result.Tutors[0]
		if err := seedSwipes(tx, []swipe.Swipe{
			{ActorID: s1.ID, TargetID: t1.ID, Action: swipe.ActionLike},
			{ActorID: t1.ID, TargetID: s1.ID, Action: swipe.ActionLike},
			{ActorID: s2.ID, TargetID: t1.ID, Action: swipe.ActionLike},
		}); err != nil {
			return fmt.Errorf("failed to seed swipes: %w", err)
		}

		m, err := seedActiveMatch(tx, s1.ID, t1.ID)
		if err != nil {
			return fmt.Errorf("failed to seed match: %w", err)
		}
		result.Matches = append(result.Matches, m)

		conv, msgs, err := seedConversation(tx, m)
		if err != nil {
			return fmt.Errorf("failed to seed conversation: %w", err)
		}
		result.Conversations = append(result.Conversations, conv)
		result.Messages = msgs
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database seeding completed successfully!")
	return result, nil
}

func seedID(kind string, n int) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("%s-%d", kind, n)))
}

func seedUsers(tx *gorm.DB, role user.Role, label string, count int) ([]user.User, error) {
	users := make([]user.User, 0, count)
	for i := 1; i <= count; i++ {
		users = append(users, user.User{
			ID:          seedID(string(role), i),
			Role:        role,
			DisplayName: fmt.Sprintf("%s %d", label, i),
			AvatarURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s%d", label, i),
			IsActive:    true,
		})
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func seedSwipes(tx *gorm.DB, swipes []swipe.Swipe) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"action", "updated_at"}),
	}).Create(&swipes).Error
}

func seedActiveMatch(tx *gorm.DB, studentID, tutorID uuid.UUID) (match.Match, error) {
	var existing match.Match
	err := tx.Where("student_id = ? AND tutor_id = ? AND status = ?", studentID, tutorID, match.StatusActive).First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return match.Match{}, err
	}

	now := time.Now().UTC()
	m := match.Match{
		ID:           uuid.New(),
		StudentID:    studentID,
		TutorID:      tutorID,
		Status:       match.StatusActive,
		MatchedAt:    now,
		LastActivity: now,
	}
	return m, tx.Create(&m).Error
}

func seedConversation(tx *gorm.DB, m match.Match) (conversation.Conversation, []message.Message, error) {
	var conv conversation.Conversation
	err := tx.Where("match_id = ?", m.ID).First(&conv).Error
	if err == nil {
		return conv, nil, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return conv, nil, err
	}

	lines := []struct {
		from    uuid.UUID
		content string
	}{
		{m.StudentID, "Hi! I need help with calculus before my exam."},
		{m.TutorID, "Happy to help. Which topics are giving you trouble?"},
		{m.StudentID, "Integration by parts, mostly."},
	}

	start := time.Now().UTC().Add(-time.Duration(len(lines)) * time.Minute)
	last := start.Add(time.Duration(len(lines)-1) * time.Minute)
	conv = conversation.Conversation{ID: uuid.New(), MatchID: m.ID, LastMessageAt: &last, CreatedAt: start}
	if err := tx.Create(&conv).Error; err != nil {
		return conv, nil, err
	}

	msgs := make([]message.Message, 0, len(lines))
	for i, line := range lines {
		id, err := uuid.NewV7()
		if err != nil {
			return conv, nil, err
		}
		at := start.Add(time.Duration(i) * time.Minute)
		msgs = append(msgs, message.Message{
			ID:             id,
			ConversationID: conv.ID,
			SenderID:       line.from,
			Content:        line.content,
			Type:           message.TypeText,
			CreatedAt:      at,
			UpdatedAt:      at,
		})
	}
	if err := tx.Create(&msgs).Error; err != nil {
		return conv, nil, err
	}
	return conv, msgs, nil
}

// TruncateAll empties every managed table.
func TruncateAll(db *gorm.DB, tables []string) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", tables[i])).Error; err != nil {
			return fmt.Errorf("failed to truncate %s: %w", tables[i], err)
		}
	}
	return nil
}
