// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/asamoylenko/wb-phrase-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetUserByChatID fetches a user by chat id, or ErrNotFound if missing.
func GetUserByChatID(ctx context.Context, db *gorm.DB, chatID string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user row for chatID with the given username.
// CreatedAt is set to UTC. On failure, it returns a DB error.
func CreateUser(ctx context.Context, db *gorm.DB, chatID, username string) (*domain.User, error) {
	u := &domain.User{
		ChatID:    chatID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// EnsureUser creates a user row for chatID unless one already exists.
// It reports whether a new row was inserted. A concurrent insert losing the
// race surfaces as a unique-constraint error from the driver; callers treat
// that the same as "already existed".
func EnsureUser(ctx context.Context, db *gorm.DB, chatID, username string) (created bool, err error) {
	_, err = GetUserByChatID(ctx, db, chatID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if _, err = CreateUser(ctx, db, chatID, username); err != nil {
		return false, err
	}
	return true, nil
}

// UserExists reports whether a user row exists for chatID.
func UserExists(ctx context.Context, db *gorm.DB, chatID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("chat_id = ?", chatID).
		Count(&n).Error
	return n > 0, err
}
