package repository

import (
	"fmt"

	"tutor-match/internal/domain/conversation"
	"tutor-match/internal/domain/match"
	"tutor-match/internal/domain/message"
	"tutor-match/internal/domain/swipe"
	"tutor-match/internal/domain/user"

	"gorm.io/gorm"
)

// InitSchema creates enums, tables, constraints, indexes and triggers. It is safe to re-run.
func InitSchema(db *gorm.DB) error {
	// 1. Enums
	// 'DO $$ BEGIN ... END $$' creates each type only if it does not exist yet.
	enums := []string{
		`DO $$ BEGIN
			CREATE TYPE user_role AS ENUM ('STUDENT', 'TUTOR');
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			CREATE TYPE swipe_action AS ENUM ('LIKE', 'DISLIKE', 'SUPER_LIKE');
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			CREATE TYPE match_status AS ENUM ('PENDING', 'ACTIVE', 'INACTIVE', 'BLOCKED', 'REJECTED');
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			CREATE TYPE message_type AS ENUM ('TEXT', 'IMAGE', 'FILE', 'SYSTEM');
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
	}

	for _, enum := range enums {
		if err := db.Exec(enum).Error; err != nil {
			return fmt.Errorf("failed to create enum: %w", err)
		}
	}

	// 2. Tables
	if err := db.AutoMigrate(
		&user.User{},
		&swipe.Swipe{},
		&match.Match{},
		&conversation.Conversation{},
		&message.Message{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	// 3. Foreign keys
	foreignKeys := []struct {
		name string
		sql  string
	}{
		{"fk_swipes_actor", `ALTER TABLE swipes ADD CONSTRAINT fk_swipes_actor FOREIGN KEY (actor_id) REFERENCES users(id) ON DELETE CASCADE`},
		{"fk_swipes_target", `ALTER TABLE swipes ADD CONSTRAINT fk_swipes_target FOREIGN KEY (target_id) REFERENCES users(id) ON DELETE CASCADE`},
		{"fk_matches_student", `ALTER TABLE matches ADD CONSTRAINT fk_matches_student FOREIGN KEY (student_id) REFERENCES users(id) ON DELETE CASCADE`},
		{"fk_matches_tutor", `ALTER TABLE matches ADD CONSTRAINT fk_matches_tutor FOREIGN KEY (tutor_id) REFERENCES users(id) ON DELETE CASCADE`},
		{"fk_conversations_match", `ALTER TABLE conversations ADD CONSTRAINT fk_conversations_match FOREIGN KEY (match_id) REFERENCES matches(id) ON DELETE CASCADE`},
		{"fk_messages_conversation", `ALTER TABLE messages ADD CONSTRAINT fk_messages_conversation FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE`},
	}
	for _, fk := range foreignKeys {
		stmt := fmt.Sprintf(`DO $$ BEGIN
			%s;
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`, fk.sql)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create foreign key %s: %w", fk.name, err)
		}
	}

	// 4. Indexes
	indexes := []string{
		// At most one ACTIVE match per pair.
		`CREATE UNIQUE INDEX IF NOT EXISTS matches_one_active_per_pair
			ON matches (student_id, tutor_id) WHERE status = 'ACTIVE'`,
		`CREATE INDEX IF NOT EXISTS idx_matches_last_activity ON matches (last_activity DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation_order
			ON messages (conversation_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread
			ON messages (conversation_id, sender_id) WHERE is_read = false`,
		`CREATE INDEX IF NOT EXISTS idx_swipes_updated_at ON swipes (updated_at)`,
	}
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	// 5. Triggers
	// Message content is immutable; only read state may change after insert.
	fnImmutable := `
	CREATE OR REPLACE FUNCTION fn_messages_immutable_content()
	RETURNS trigger LANGUAGE plpgsql AS $$
	BEGIN
		IF NEW.content IS DISTINCT FROM OLD.content
			OR NEW.sender_id IS DISTINCT FROM OLD.sender_id
			OR NEW.conversation_id IS DISTINCT FROM OLD.conversation_id
			OR NEW.type IS DISTINCT FROM OLD.type
			OR NEW.created_at IS DISTINCT FROM OLD.created_at THEN
			RAISE EXCEPTION 'message % is immutable', OLD.id;
		END IF;
		IF OLD.is_read AND NOT NEW.is_read THEN
			RAISE EXCEPTION 'message % cannot be marked unread', OLD.id;
		END IF;
		RETURN NEW;
	END;
	$$;`

	if err := db.Exec(fnImmutable).Error; err != nil {
		return fmt.Errorf("failed to create function fn_messages_immutable_content: %w", err)
	}

	// We drop it first to ensure we can recreate it (idempotency).
	triggerSQL := `
	DROP TRIGGER IF EXISTS tr_messages_immutable_content ON messages;
	CREATE TRIGGER tr_messages_immutable_content
	BEFORE UPDATE ON messages
	FOR EACH ROW
	EXECUTE PROCEDURE fn_messages_immutable_content();`

	if err := db.Exec(triggerSQL).Error; err != nil {
		return fmt.Errorf("failed to create trigger tr_messages_immutable_content: %w", err)
	}

	return nil
}

// Tables lists managed tables in dependency order.
func Tables() []string {
	return []string{"users", "swipes", "matches", "conversations", "messages"}
}
