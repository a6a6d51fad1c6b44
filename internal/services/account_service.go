// Package services – AccountService
//
// This file implements AccountService, which registers chats as users on
// first contact and answers the shop-existence checks that gate some bot
// replies. Existence lookups go through a bounded TTL presence cache owned by
// the repo layer; a cold cache always falls back to a store query.
package services

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"github.com/asamoylenko/wb-phrase-bot/internal/repo"
)

// AccountService manages user rows and shop-existence checks per chat.
type AccountService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cache front-runs existence queries; may be nil to disable caching.
	Cache *repo.PresenceCache
}

// NewAccountService constructs an AccountService with a default-sized cache.
func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		DB:    db,
		Cache: repo.NewPresenceCache(0, 0),
	}
}

// Register ensures a user row exists for chatID, creating one with the given
// username on first contact. It reports whether a new row was inserted.
func (s *AccountService) Register(ctx context.Context, chatID int64, username string) (bool, error) {
	key := chatKey(chatID)
	created, err := repo.EnsureUser(ctx, s.DB, key, username)
	if err != nil {
		return false, err
	}
	if created && s.Cache != nil {
		s.Cache.Invalidate(key)
	}
	return created, nil
}

// HasShop reports whether any shop is registered for chatID, consulting the
// presence cache first.
func (s *AccountService) HasShop(ctx context.Context, chatID int64) (bool, error) {
	key := chatKey(chatID)
	if s.Cache != nil {
		if _, shop, ok := s.Cache.Get(key); ok {
			return shop, nil
		}
	}
	userExists, err := repo.UserExists(ctx, s.DB, key)
	if err != nil {
		return false, err
	}
	shopExists, err := repo.ShopExistsForChat(ctx, s.DB, key)
	if err != nil {
		return false, err
	}
	if s.Cache != nil {
		s.Cache.Put(key, userExists, shopExists)
	}
	return shopExists, nil
}

// chatKey renders a Telegram chat id in the string form the store uses.
func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
