// Package services – ImportService
//
// This file implements the phrase upsert engine. Given the raw table produced
// by the importer it normalizes each row, reconciles it against the store
// (insert new vs. replace existing), and reports progress to the user while
// the file is being worked through.
//
// Two commit strategies are supported. "row" commits after every row, so a
// crash mid-file keeps everything already written; "batch" wraps the whole
// table in one transaction and trades that durability for throughput.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/asamoylenko/wb-phrase-bot/internal/importer"
	"github.com/asamoylenko/wb-phrase-bot/internal/repo"
)

// Required columns, by fixed zero-based position in the report.
const (
	colPhrase  = 0
	colQnty    = 3
	colSubject = 5

	minColumns = colSubject + 1
)

// Progress cadence.
const (
	logEvery    = 100
	notifyEvery = 1000
)

// Commit strategies.
const (
	CommitPerRow = "row"
	CommitBatch  = "batch"
)

// Notifier delivers a user-facing message to a chat. Implementations must not
// return errors: messaging failures are logged by the implementation, never
// surfaced, because the same channel carries error reports.
type Notifier interface {
	Send(chatID int64, text string)
}

// ImportResult carries the counts of one import run.
type ImportResult struct {
	Added     int
	Updated   int
	Processed int
}

// ImportService turns uploaded phrase reports into store rows.
type ImportService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Notifier delivers progress and completion messages.
	Notifier Notifier
	// Log receives row-level progress and skip diagnostics.
	Log zerolog.Logger

	// FileMarker and SheetMarker select the archive member and worksheet.
	FileMarker  string
	SheetMarker string
	// CommitStrategy is CommitPerRow or CommitBatch.
	CommitStrategy string
}

// ImportArchive extracts the phrase table from a ZIP payload and upserts it
// into the chat's scope. Extraction failures come back as the importer's
// typed errors so the handler can word the user notice.
func (s *ImportService) ImportArchive(ctx context.Context, chatID int64, data []byte) (ImportResult, error) {
	tr := otel.Tracer("services/ImportService")
	ctx, span := tr.Start(ctx, "ImportArchive",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	table, err := importer.ExtractTable(data, s.FileMarker, s.SheetMarker)
	if err != nil {
		return ImportResult{}, err
	}
	return s.UpsertTable(ctx, chatID, table)
}

// UpsertTable reconciles every row of the table against the store.
//
// Per row: the phrase text is NFC-normalized and trimmed; an empty phrase
// skips the row. The daily count is coerced to an integer with a fallback of
// zero. An existing phrase is replaced in full (its enrichment fields reset),
// a new one is inserted.
//
// A store-level failure aborts the remaining rows; the counts accumulated so
// far are still returned alongside ErrImportAborted.
func (s *ImportService) UpsertTable(ctx context.Context, chatID int64, table *importer.Table) (ImportResult, error) {
	if table.Width() < minColumns {
		return ImportResult{}, fmt.Errorf("%w: need %d, got %d", ErrInsufficientColumns, minColumns, table.Width())
	}

	var res ImportResult
	key := chatKey(chatID)

	work := func(tx *gorm.DB) error {
		for _, row := range table.Rows {
			added, updated, err := s.upsertRow(ctx, tx, key, row)
			if err != nil {
				return err
			}
			if !added && !updated {
				continue // skipped row, not counted
			}
			res.Processed++
			if added {
				res.Added++
			} else {
				res.Updated++
			}
			if res.Processed%logEvery == 0 {
				s.Log.Info().
					Int64("chat_id", chatID).
					Int("processed", res.Processed).
					Msg("import progress")
			}
			if res.Processed%notifyEvery == 0 {
				s.notifyProgress(chatID, res)
			}
		}
		return nil
	}

	var err error
	if s.CommitStrategy == CommitBatch {
		err = s.DB.WithContext(ctx).Transaction(work)
	} else {
		err = work(s.DB)
	}
	if err != nil {
		s.Log.Error().Err(err).Int64("chat_id", chatID).Int("processed", res.Processed).Msg("import aborted")
		return res, fmt.Errorf("%w: %v", ErrImportAborted, err)
	}

	s.notifyProgress(chatID, res)
	return res, nil
}

// upsertRow processes one table row inside tx. In per-row mode the replace
// path still runs lookup and write atomically.
func (s *ImportService) upsertRow(ctx context.Context, tx *gorm.DB, chatKey string, row []string) (added, updated bool, err error) {
	phrase := normalizePhrase(cellAt(row, colPhrase))
	if phrase == "" {
		s.Log.Debug().Str("chat_id", chatKey).Msg("skipping row with empty phrase")
		return false, false, nil
	}
	qnty := coerceCount(cellAt(row, colQnty))
	subject := strings.TrimSpace(cellAt(row, colSubject))

	doRow := func(tx *gorm.DB) error {
		_, err := repo.GetPhrase(ctx, tx, chatKey, phrase)
		switch {
		case err == nil:
			updated = true
			return repo.ReplacePhrase(ctx, tx, chatKey, phrase, qnty, subject)
		case errors.Is(err, gorm.ErrRecordNotFound):
			added = true
			return repo.CreatePhrase(ctx, tx, chatKey, phrase, qnty, subject)
		default:
			return err
		}
	}

	if s.CommitStrategy == CommitBatch {
		err = doRow(tx)
	} else {
		err = tx.WithContext(ctx).Transaction(doRow)
	}
	if err != nil {
		added, updated = false, false
	}
	return added, updated, err
}

func (s *ImportService) notifyProgress(chatID int64, res ImportResult) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Send(chatID, fmt.Sprintf(
		"Обработано строк: %d. Добавлено: %d, обновлено: %d.",
		res.Processed, res.Added, res.Updated,
	))
}

// normalizePhrase trims and NFC-normalizes a phrase cell. Reports from
// different tools disagree on composed vs. decomposed Cyrillic, and the
// phrase text is the primary key, so equality must not depend on that.
func normalizePhrase(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// coerceCount parses a daily-count cell, treating anything non-numeric as 0.
// Numeric cells sometimes stringify with a decimal part, so a float parse is
// the fallback before giving up.
func coerceCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// cellAt returns the cell at position i or "" when the row is too short.
func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}
