// Telegram webhook handler.
//
// This file receives bot updates on POST /webhook/:token, dispatches the
// recognized commands and document uploads, and always acknowledges with a
// plain 200 "ok" body. Failures are never surfaced as non-200 statuses: the
// upstream re-delivers on errors, and a poisoned update would loop forever.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/asamoylenko/wb-phrase-bot/internal/http/middleware"
	"github.com/asamoylenko/wb-phrase-bot/internal/importer"
	"github.com/asamoylenko/wb-phrase-bot/internal/services"
	"github.com/asamoylenko/wb-phrase-bot/internal/tasks"
)

// archiveExt is the only accepted upload extension.
const archiveExt = ".zip"

//
// Service contracts (context-aware)
//

// AccountService registers users and answers shop-existence checks.
type AccountService interface {
	// Register ensures a user row exists, reporting whether one was created.
	Register(ctx context.Context, chatID int64, username string) (bool, error)
	// HasShop reports whether any shop is registered for the chat.
	HasShop(ctx context.Context, chatID int64) (bool, error)
}

// ImportService ingests an uploaded ZIP report into the chat's phrase scope.
type ImportService interface {
	ImportArchive(ctx context.Context, chatID int64, data []byte) (services.ImportResult, error)
}

// EnrichService runs the ad-metrics enrichment task for a chat.
type EnrichService interface {
	Run(ctx context.Context, chatID int64) error
}

// PhraseService owns the bulk clear operation.
type PhraseService interface {
	Clear(ctx context.Context, chatID int64) error
}

// Messenger is the outbound Telegram surface the handler needs.
type Messenger interface {
	Send(chatID int64, text string)
	DownloadDocument(ctx context.Context, fileID string) ([]byte, error)
}

// TaskPool accepts background work.
type TaskPool interface {
	Submit(t tasks.Task) error
}

//
// Handler wiring
//

// Handlers groups the webhook and status endpoints. It depends on abstract
// service interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	token    string
	accounts AccountService
	imports  ImportService
	enrich   EnrichService
	phrases  PhraseService
	tg       Messenger
	pool     TaskPool
}

// New constructs a Handlers instance bound to the given collaborators.
// token is the webhook path secret (the bot token).
func New(token string, accounts AccountService, imports ImportService, enrich EnrichService, phrases PhraseService, tg Messenger, pool TaskPool) *Handlers {
	return &Handlers{
		token:    token,
		accounts: accounts,
		imports:  imports,
		enrich:   enrich,
		phrases:  phrases,
		tg:       tg,
		pool:     pool,
	}
}

// Webhook handles one Telegram update. Whatever happens inside (bad token,
// malformed body, panics), the response is 200 "ok".
func (h *Handlers) Webhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)
	defer func() {
		if rec := recover(); rec != nil {
			lg.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("webhook panicked")
		}
		if !c.Writer.Written() {
			c.String(http.StatusOK, "ok")
		}
	}()

	if c.Param("token") != h.token {
		lg.Warn().Msg("webhook called with wrong token")
		return
	}

	var upd tgbotapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		lg.Warn().Err(err).Msg("malformed webhook body")
		return
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		// Edits, callbacks etc. are acknowledged and ignored.
		return
	}

	chatID := msg.Chat.ID
	username := ""
	if msg.From != nil {
		username = msg.From.UserName
	}
	ctx := c.Request.Context()

	if _, err := h.accounts.Register(ctx, chatID, username); err != nil {
		lg.Error().Err(err).Int64("chat_id", chatID).Msg("register user failed")
	}

	switch {
	case msg.Document != nil:
		h.handleDocument(ctx, lg, chatID, msg.Document)
	case msg.IsCommand():
		h.handleCommand(ctx, lg, chatID, msg.Command())
	case msg.Text != "":
		h.handleText(ctx, lg, chatID, username, msg.Text)
	}
}

func (h *Handlers) handleCommand(ctx context.Context, lg *zerolog.Logger, chatID int64, command string) {
	switch command {
	case "start":
		hasShop, err := h.accounts.HasShop(ctx, chatID)
		if err != nil {
			lg.Error().Err(err).Int64("chat_id", chatID).Msg("shop lookup failed")
		}
		if hasShop {
			h.tg.Send(chatID, "Привет, это я бот! У вас есть зарегистрированный магазин.")
		} else {
			h.tg.Send(chatID, "Привет, это я бот! У вас пока нет зарегистрированных магазинов.")
		}
	case "words":
		h.tg.Send(chatID, "Пришлите ZIP-архив с отчётом по запросам (.zip с файлом .xlsx внутри).")
	case "searchads":
		h.submit(lg, chatID, tasks.KindEnrich, func(ctx context.Context) error {
			return h.enrich.Run(ctx, chatID)
		})
	case "clearwords":
		h.submit(lg, chatID, tasks.KindClear, func(ctx context.Context) error {
			return h.phrases.Clear(ctx, chatID)
		})
	default:
		h.tg.Send(chatID, "Не знаю такой команды. Доступны: /start, /words, /searchads, /clearwords.")
	}
}

func (h *Handlers) handleText(ctx context.Context, lg *zerolog.Logger, chatID int64, username, text string) {
	hasShop, err := h.accounts.HasShop(ctx, chatID)
	if err != nil {
		lg.Error().Err(err).Int64("chat_id", chatID).Msg("shop lookup failed")
	}
	if !hasShop {
		h.tg.Send(chatID, "У вас нет зарегистрированных магазинов.")
		return
	}
	h.tg.Send(chatID, fmt.Sprintf("Привет, @%s! Вы написали: %s", username, text))
}

// handleDocument downloads an uploaded archive and runs the import inline;
// only enrichment and clears go through the background pool.
func (h *Handlers) handleDocument(ctx context.Context, lg *zerolog.Logger, chatID int64, doc *tgbotapi.Document) {
	if !strings.HasSuffix(strings.ToLower(doc.FileName), archiveExt) {
		h.tg.Send(chatID, "Пришлите файл как ZIP-архив (.zip).")
		return
	}

	data, err := h.tg.DownloadDocument(ctx, doc.FileID)
	if err != nil {
		lg.Error().Err(err).Int64("chat_id", chatID).Str("file", doc.FileName).Msg("document download failed")
		h.tg.Send(chatID, "Не удалось скачать файл, попробуйте ещё раз.")
		return
	}

	res, err := h.imports.ImportArchive(ctx, chatID, data)
	middleware.ImportedRows.WithLabelValues("added").Add(float64(res.Added))
	middleware.ImportedRows.WithLabelValues("updated").Add(float64(res.Updated))
	if err != nil {
		lg.Warn().Err(err).Int64("chat_id", chatID).Str("file", doc.FileName).Msg("import failed")
		h.tg.Send(chatID, importErrorText(err, res))
		return
	}
	lg.Info().
		Int64("chat_id", chatID).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("processed", res.Processed).
		Msg("import finished")
}

// submit queues a background task and translates pool refusals into user
// notices.
func (h *Handlers) submit(lg *zerolog.Logger, chatID int64, kind tasks.Kind, run func(context.Context) error) {
	err := h.pool.Submit(tasks.Task{ChatID: chatID, Kind: kind, Run: run})
	switch {
	case err == nil:
		h.tg.Send(chatID, "Задача запущена, результаты пришлю сообщениями.")
	case errors.Is(err, tasks.ErrAlreadyRunning):
		h.tg.Send(chatID, "Эта задача уже выполняется, дождитесь завершения.")
	case errors.Is(err, tasks.ErrQueueFull):
		h.tg.Send(chatID, "Сейчас слишком много задач, попробуйте чуть позже.")
	default:
		lg.Error().Err(err).Int64("chat_id", chatID).Str("kind", string(kind)).Msg("task submit failed")
		h.tg.Send(chatID, "Не удалось запустить задачу, попробуйте позже.")
	}
}

// importErrorText words an import failure for the user, including the counts
// accumulated before an aborted import stopped.
func importErrorText(err error, res services.ImportResult) string {
	var noSheet *importer.NoDataSheetError
	switch {
	case errors.Is(err, importer.ErrBadArchive):
		return "Файл не похож на ZIP-архив. Пришлите корректный .zip."
	case errors.Is(err, importer.ErrNoSpreadsheet):
		return "В архиве нет файла .xlsx."
	case errors.As(err, &noSheet):
		return "Не нашёл лист с данными. Листы в файле: " + strings.Join(noSheet.Available, ", ")
	case errors.Is(err, importer.ErrEmptySheet):
		return "Лист с данными пуст — нет ни одной строки после заголовка."
	case errors.Is(err, services.ErrInsufficientColumns):
		return "В таблице меньше колонок, чем ожидается (нужно минимум 6)."
	case errors.Is(err, services.ErrImportAborted):
		return fmt.Sprintf(
			"Импорт прерван ошибкой базы. Успело сохраниться: %d строк (добавлено %d, обновлено %d).",
			res.Processed, res.Added, res.Updated,
		)
	default:
		return "Не удалось обработать файл."
	}
}
