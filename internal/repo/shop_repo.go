// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Shop model.
//
// Shops are registered by an external flow; this service only reads them.
// The existence of a shop row for a chat gates some bot replies.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/asamoylenko/wb-phrase-bot/internal/domain"
)

// ShopExistsForChat reports whether any shop row is registered for chatID.
func ShopExistsForChat(ctx context.Context, db *gorm.DB, chatID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Shop{}).
		Where("chat_id = ?", chatID).
		Count(&n).Error
	return n > 0, err
}

// ListShops returns all shop rows owned by chatID.
func ListShops(ctx context.Context, db *gorm.DB, chatID string) ([]domain.Shop, error) {
	var out []domain.Shop
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Find(&out).Error
	return out, err
}
