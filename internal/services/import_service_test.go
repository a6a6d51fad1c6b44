package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/asamoylenko/wb-phrase-bot/internal/domain"
	"github.com/asamoylenko/wb-phrase-bot/internal/importer"
	"github.com/asamoylenko/wb-phrase-bot/internal/repo"
)

func newServicesDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// fakeNotifier records outbound messages in order.
type fakeNotifier struct {
	chats []int64
	msgs  []string
}

func (f *fakeNotifier) Send(chatID int64, text string) {
	f.chats = append(f.chats, chatID)
	f.msgs = append(f.msgs, text)
}

func (f *fakeNotifier) last() string {
	if len(f.msgs) == 0 {
		return ""
	}
	return f.msgs[len(f.msgs)-1]
}

func makeTable(rows ...[]string) *importer.Table {
	return &importer.Table{
		Sheet:  "Запросы",
		Header: []string{"Поисковый запрос", "x", "y", "Количество", "z", "Предмет"},
		Rows:   rows,
	}
}

func newImportService(db *gorm.DB, n Notifier, strategy string) *ImportService {
	return &ImportService{
		DB:             db,
		Notifier:       n,
		Log:            zerolog.Nop(),
		FileMarker:     "запросы",
		SheetMarker:    "запросы",
		CommitStrategy: strategy,
	}
}

func TestUpsertTable_InsufficientColumns_NoMutation(t *testing.T) {
	db := newServicesDB(t, &domain.Phrase{})
	svc := newImportService(db, nil, CommitPerRow)

	table := &importer.Table{
		Sheet:  "Запросы",
		Header: []string{"a", "b", "c", "d", "e"}, // one column short
		Rows:   [][]string{{"платье", "", "", "1", ""}},
	}
	_, err := svc.UpsertTable(context.Background(), 100, table)
	if !errors.Is(err, ErrInsufficientColumns) {
		t.Fatalf("expected ErrInsufficientColumns, got %v", err)
	}

	n, err := repo.CountPhrases(context.Background(), db, "100")
	if err != nil {
		t.Fatalf("CountPhrases: %v", err)
	}
	if n != 0 {
		t.Fatalf("store mutated despite width failure: %d rows", n)
	}
}

func TestUpsertTable_MixedRows(t *testing.T) {
	db := newServicesDB(t, &domain.Phrase{})
	notifier := &fakeNotifier{}
	svc := newImportService(db, notifier, CommitPerRow)
	ctx := context.Background()

	res, err := svc.UpsertTable(ctx, 100, makeTable(
		[]string{"shoes", "", "", "100", "", "footwear"},
		[]string{"", "", "", "5", "", "x"},           // empty phrase, skipped
		[]string{"hats", "", "", "bad", "", "accessories"}, // bad count coerced to 0
	))
	if err != nil {
		t.Fatalf("UpsertTable: %v", err)
	}
	if res.Added != 2 || res.Updated != 0 || res.Processed != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	n, err := repo.CountPhrases(ctx, db, "100")
	if err != nil {
		t.Fatalf("CountPhrases: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 stored rows, got %d", n)
	}

	hats, err := repo.GetPhrase(ctx, db, "100", "hats")
	if err != nil {
		t.Fatalf("GetPhrase(hats): %v", err)
	}
	if hats.QntyPerDay != 0 || hats.Subject != "accessories" {
		t.Fatalf("bad-count row mis-stored: %+v", hats)
	}

	if got := notifier.last(); got != "Обработано строк: 2. Добавлено: 2, обновлено: 0." {
		t.Fatalf("completion notice mismatch: %q", got)
	}
}

func TestUpsertTable_ReimportResetsEnrichment(t *testing.T) {
	db := newServicesDB(t, &domain.Phrase{})
	svc := newImportService(db, nil, CommitPerRow)
	ctx := context.Background()

	if _, err := svc.UpsertTable(ctx, 100, makeTable([]string{"пальто", "", "", "10", "", "одежда"})); err != nil {
		t.Fatalf("first import: %v", err)
	}
	nq := "пальто женское"
	if err := repo.UpdatePhraseMetrics(ctx, db, "100", "пальто", 42, &nq, 1, 2, 300); err != nil {
		t.Fatalf("UpdatePhraseMetrics: %v", err)
	}

	res, err := svc.UpsertTable(ctx, 100, makeTable([]string{"пальто", "", "", "11", "", "одежда"}))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if res.Added != 0 || res.Updated != 1 {
		t.Fatalf("expected one update, got %+v", res)
	}

	got, err := repo.GetPhrase(ctx, db, "100", "пальто")
	if err != nil {
		t.Fatalf("GetPhrase: %v", err)
	}
	if got.QntyPerDay != 11 {
		t.Fatalf("qnty not replaced: %+v", got)
	}
	if got.Preset != 0 || got.NormQuery != nil || got.Auto != 0 || got.Auction != 0 || got.Total != 0 {
		t.Fatalf("enrichment fields survived re-import: %+v", got)
	}
}

func TestUpsertTable_BatchStrategy_SameOutcome(t *testing.T) {
	db := newServicesDB(t, &domain.Phrase{})
	svc := newImportService(db, nil, CommitBatch)
	ctx := context.Background()

	res, err := svc.UpsertTable(ctx, 100, makeTable(
		[]string{"first", "", "", "1", "", "s"},
		[]string{"second", "", "", "2", "", "s"},
	))
	if err != nil {
		t.Fatalf("UpsertTable batch: %v", err)
	}
	if res.Added != 2 || res.Processed != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	n, err := repo.CountPhrases(ctx, db, "100")
	if err != nil {
		t.Fatalf("CountPhrases: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 stored rows, got %d", n)
	}
}

func TestUpsertTable_TrimsAndNormalizesPhrase(t *testing.T) {
	db := newServicesDB(t, &domain.Phrase{})
	svc := newImportService(db, nil, CommitPerRow)
	ctx := context.Background()

	if _, err := svc.UpsertTable(ctx, 100, makeTable([]string{"  кофта  ", "", "", "1", "", " трикотаж "})); err != nil {
		t.Fatalf("UpsertTable: %v", err)
	}

	got, err := repo.GetPhrase(ctx, db, "100", "кофта")
	if err != nil {
		t.Fatalf("GetPhrase by trimmed key: %v", err)
	}
	if got.Subject != "трикотаж" {
		t.Fatalf("subject not trimmed: %q", got.Subject)
	}
}

func TestCoerceCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"42", 42},
		{" 42 ", 42},
		{"12.0", 12},
		{"12.7", 12},
		{"abc", 0},
	}
	for _, c := range cases {
		if got := coerceCount(c.in); got != c.want {
			t.Fatalf("coerceCount(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestImportArchive_PropagatesExtractionErrors(t *testing.T) {
	db := newServicesDB(t, &domain.Phrase{})
	svc := newImportService(db, nil, CommitPerRow)

	_, err := svc.ImportArchive(context.Background(), 100, []byte("not a zip"))
	if !errors.Is(err, importer.ErrBadArchive) {
		t.Fatalf("expected ErrBadArchive, got %v", err)
	}
}
