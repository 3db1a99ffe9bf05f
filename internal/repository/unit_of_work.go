package repository

import (
	"context"

	"gorm.io/gorm"
)

// NewStores binds every repository to db, which may be a pool or a transaction.
func NewStores(db *gorm.DB) Stores {
	return Stores{
		Users:         NewUserRepository(db),
		Swipes:        NewSwipeRepository(db),
		Matches:       NewMatchRepository(db),
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db),
	}
}

type GormUnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewStores(tx))
	})
}
