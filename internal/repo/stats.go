// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used by the
// status page. Each function is context-aware and safe to call from services
// or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/asamoylenko/wb-phrase-bot/internal/domain"
)

// TableCounts holds one row count per known table.
type TableCounts struct {
	Users   int64
	Shops   int64
	Phrases int64
}

// CountAll returns the total row count of each known table. Used only for the
// liveness/inspection page, not by the import or enrichment paths.
func CountAll(ctx context.Context, db *gorm.DB) (TableCounts, error) {
	var tc TableCounts
	if err := db.WithContext(ctx).Model(&domain.User{}).Count(&tc.Users).Error; err != nil {
		return tc, err
	}
	if err := db.WithContext(ctx).Model(&domain.Shop{}).Count(&tc.Shops).Error; err != nil {
		return tc, err
	}
	if err := db.WithContext(ctx).Model(&domain.Phrase{}).Count(&tc.Phrases).Error; err != nil {
		return tc, err
	}
	return tc, nil
}
