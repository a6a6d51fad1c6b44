// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Phrase
// model.
//
// Phrases live in one shared table keyed by the composite (chat_id, phrase)
// primary key, so every query here is scoped by chatID.
//
// Error semantics follow the rest of the package: gorm.ErrRecordNotFound for
// missing rows, raw gorm errors otherwise.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/asamoylenko/wb-phrase-bot/internal/domain"
)

// GetPhrase fetches a phrase row by exact text within a chat scope, or
// ErrNotFound if missing.
func GetPhrase(ctx context.Context, db *gorm.DB, chatID, text string) (*domain.Phrase, error) {
	var p domain.Phrase
	err := db.WithContext(ctx).
		Where("chat_id = ? AND phrase = ?", chatID, text).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePhrase inserts a fresh phrase row with enrichment fields at their
// zero/null defaults.
func CreatePhrase(ctx context.Context, db *gorm.DB, chatID, text string, qntyPerDay int, subject string) error {
	p := &domain.Phrase{
		ChatID:     chatID,
		Text:       text,
		QntyPerDay: qntyPerDay,
		Subject:    subject,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(p).Error
}

// ReplacePhrase overwrites an existing phrase row with fresh import data.
// The four enrichment fields are reset to their defaults, matching the
// contract that a re-import yields the same state as a first import.
// Returns ErrNotFound when no row matched.
func ReplacePhrase(ctx context.Context, db *gorm.DB, chatID, text string, qntyPerDay int, subject string) error {
	res := db.WithContext(ctx).
		Model(&domain.Phrase{}).
		Where("chat_id = ? AND phrase = ?", chatID, text).
		Updates(map[string]any{
			"qnty_per_day": qntyPerDay,
			"subject":      subject,
			"preset":       0,
			"norm_query":   nil,
			"auto":         0,
			"auction":      0,
			"total":        0,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdatePhraseMetrics writes the four enrichment fields onto an existing
// phrase row. Returns ErrNotFound when no row matched.
func UpdatePhraseMetrics(ctx context.Context, db *gorm.DB, chatID, text string, preset int, normQuery *string, auto, auction, total int) error {
	res := db.WithContext(ctx).
		Model(&domain.Phrase{}).
		Where("chat_id = ? AND phrase = ?", chatID, text).
		Updates(map[string]any{
			"preset":     preset,
			"norm_query": normQuery,
			"auto":       auto,
			"auction":    auction,
			"total":      total,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPhrases returns all phrases owned by chatID, ordered by phrase text.
func ListPhrases(ctx context.Context, db *gorm.DB, chatID string) ([]domain.Phrase, error) {
	var out []domain.Phrase
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("phrase asc").
		Find(&out).Error
	return out, err
}

// CountPhrases returns the number of phrases owned by chatID.
func CountPhrases(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Phrase{}).
		Where("chat_id = ?", chatID).
		Count(&total).Error
	return total, err
}

// DeletePhrases removes every phrase owned by chatID in one bulk statement
// and returns the number of rows deleted. Deleting an empty scope is not an
// error and reports 0.
func DeletePhrases(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&domain.Phrase{})
	return res.RowsAffected, res.Error
}
