// Package services – EnrichService
//
// This file implements the ad-metrics enrichment task. It walks every phrase
// stored for a chat, queries the external search endpoint for live metrics,
// and writes the four enrichment fields back one phrase at a time, so a crash
// mid-run keeps everything already written.
//
// The task runs in the background via the task pool; it communicates with the
// user only through outbound messages and never holds a webhook response open.
package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/asamoylenko/wb-phrase-bot/internal/adsearch"
	"github.com/asamoylenko/wb-phrase-bot/internal/repo"
)

// maxErrorExamples caps how many per-phrase failures the final summary quotes.
const maxErrorExamples = 5

// Searcher fetches ad metrics for one phrase. Satisfied by *adsearch.Client.
type Searcher interface {
	Search(ctx context.Context, phrase string) (*adsearch.Result, error)
}

// EnrichService runs the ad-metrics enrichment task for a chat scope.
type EnrichService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Notifier delivers per-phrase and summary messages.
	Notifier Notifier
	// Searcher calls the external search endpoint.
	Searcher Searcher
	// Log receives per-phrase diagnostics.
	Log zerolog.Logger

	// DelayMin/DelayMax bound the randomized politeness delay before each
	// external call. Both zero disables the delay (tests).
	DelayMin time.Duration
	DelayMax time.Duration

	// TotalRetries is the attempt budget while the response total is 0.
	TotalRetries int
	// PresetRetries is the attempt budget while the response preset is 0.
	PresetRetries int
}

// Run enriches every phrase currently stored for chatID. It returns an error
// only for scope-level failures (listing the phrases); per-phrase failures
// are collected and reported in the final summary instead.
func (s *EnrichService) Run(ctx context.Context, chatID int64) error {
	tr := otel.Tracer("services/EnrichService")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
	defer span.End()

	key := chatKey(chatID)
	phrases, err := repo.ListPhrases(ctx, s.DB, key)
	if err != nil {
		return fmt.Errorf("list phrases: %w", err)
	}
	if len(phrases) == 0 {
		s.notify(chatID, "Нет сохранённых фраз — сначала загрузите файл командой /words.")
		return nil
	}

	total := len(phrases)
	updated := 0
	var failures []string

	for i, p := range phrases {
		res, err := s.fetchWithRetry(ctx, p.Text)
		if err == nil {
			err = s.persist(ctx, key, p.Text, res)
		}
		if err != nil {
			s.Log.Warn().Err(err).Int64("chat_id", chatID).Str("phrase", p.Text).Msg("enrich phrase failed")
			failures = append(failures, fmt.Sprintf("%s: %v", p.Text, err))
		} else {
			updated++
			auto, auction := res.CountPlacements()
			s.notify(chatID, fmt.Sprintf(
				"«%s»: всего %d, авто %d, аукцион %d, пресет %d",
				p.Text, res.Total, auto, auction, res.Metadata.PresetID,
			))
		}
		if n := i + 1; n%logEvery == 0 {
			s.notify(chatID, fmt.Sprintf("Обработано %d из %d фраз…", n, total))
		}
	}

	s.notify(chatID, summary(total, updated, failures))
	return nil
}

// fetchWithRetry calls the search endpoint for one phrase, retrying while the
// response still reports a zero total or a zero preset.
//
// The two budgets are independent: totalTries counts attempts made while
// total == 0, presetTries counts attempts made while preset == 0. The loop
// keeps going while either triggered condition still has budget and stops as
// soon as both values are non-zero; once the budgets run out, the last
// response is accepted as-is. Transport or decode failures abort immediately.
func (s *EnrichService) fetchWithRetry(ctx context.Context, phrase string) (*adsearch.Result, error) {
	totalTries, presetTries := 0, 0
	for {
		if err := s.politeDelay(ctx); err != nil {
			return nil, err
		}
		res, err := s.Searcher.Search(ctx, phrase)
		if err != nil {
			return nil, err
		}

		retry := false
		if res.Total == 0 {
			totalTries++
			if totalTries < s.TotalRetries {
				retry = true
			}
		}
		if res.Metadata.PresetID == 0 {
			presetTries++
			if presetTries < s.PresetRetries {
				retry = true
			}
		}
		if !retry {
			return res, nil
		}
	}
}

// persist writes one phrase's metrics, committing immediately.
func (s *EnrichService) persist(ctx context.Context, chatKey, phrase string, res *adsearch.Result) error {
	auto, auction := res.CountPlacements()
	var normQuery *string
	if nq := strings.TrimSpace(res.Metadata.NormQuery); nq != "" {
		normQuery = &nq
	}
	return repo.UpdatePhraseMetrics(ctx, s.DB, chatKey, phrase, res.Metadata.PresetID, normQuery, auto, auction, res.Total)
}

// politeDelay sleeps a randomized interval in [DelayMin, DelayMax] unless the
// context is cancelled first.
func (s *EnrichService) politeDelay(ctx context.Context) error {
	d := s.DelayMin
	if spread := s.DelayMax - s.DelayMin; spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *EnrichService) notify(chatID int64, text string) {
	if s.Notifier != nil {
		s.Notifier.Send(chatID, text)
	}
}

// summary renders the final task report with up to maxErrorExamples failures.
func summary(total, updated int, failures []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Готово. Обработано фраз: %d, обновлено: %d, ошибок: %d.", total, updated, len(failures))
	if len(failures) == 0 {
		return b.String()
	}
	b.WriteString("\nПримеры ошибок:")
	shown := failures
	if len(shown) > maxErrorExamples {
		shown = shown[:maxErrorExamples]
	}
	for _, f := range shown {
		b.WriteString("\n— ")
		b.WriteString(f)
	}
	if rest := len(failures) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n…и ещё %d.", rest)
	}
	return b.String()
}
