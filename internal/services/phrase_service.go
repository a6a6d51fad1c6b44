// Package services – PhraseService
//
// This file implements the clear-phrases operation: a bulk delete of every
// phrase in a chat scope, run in the background and reported to the user via
// outbound messages.
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/asamoylenko/wb-phrase-bot/internal/repo"
)

// PhraseService owns bulk phrase operations for a chat scope.
type PhraseService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Notifier delivers the outcome message.
	Notifier Notifier
	// Log receives failure diagnostics.
	Log zerolog.Logger
}

// Clear deletes every phrase owned by chatID in one bulk statement and tells
// the user how many rows went away. Clearing an empty scope is a no-op with
// its own notice. A deletion failure rolls back (the delete is a single
// statement) and is reported to the user.
func (s *PhraseService) Clear(ctx context.Context, chatID int64) error {
	key := chatKey(chatID)
	deleted, err := repo.DeletePhrases(ctx, s.DB, key)
	if err != nil {
		s.Log.Error().Err(err).Int64("chat_id", chatID).Msg("clear phrases failed")
		s.notify(chatID, "Не удалось удалить фразы, попробуйте позже.")
		return fmt.Errorf("delete phrases: %w", err)
	}
	if deleted == 0 {
		s.notify(chatID, "Список фраз уже пуст.")
		return nil
	}
	s.notify(chatID, fmt.Sprintf("Удалено фраз: %d.", deleted))
	return nil
}

func (s *PhraseService) notify(chatID int64, text string) {
	if s.Notifier != nil {
		s.Notifier.Send(chatID, text)
	}
}
