package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/asamoylenko/wb-phrase-bot/internal/importer"
	"github.com/asamoylenko/wb-phrase-bot/internal/services"
	"github.com/asamoylenko/wb-phrase-bot/internal/tasks"
)

const testToken = "123456:TEST"

type fakeAccounts struct {
	hasShop    bool
	registered []int64
}

func (f *fakeAccounts) Register(ctx context.Context, chatID int64, username string) (bool, error) {
	f.registered = append(f.registered, chatID)
	return true, nil
}

func (f *fakeAccounts) HasShop(ctx context.Context, chatID int64) (bool, error) {
	return f.hasShop, nil
}

type fakeImports struct {
	res  services.ImportResult
	err  error
	got  []byte
	runs int
}

func (f *fakeImports) ImportArchive(ctx context.Context, chatID int64, data []byte) (services.ImportResult, error) {
	f.runs++
	f.got = data
	return f.res, f.err
}

type fakeEnrich struct{ runs int }

func (f *fakeEnrich) Run(ctx context.Context, chatID int64) error {
	f.runs++
	return nil
}

type fakePhrases struct{ clears int }

func (f *fakePhrases) Clear(ctx context.Context, chatID int64) error {
	f.clears++
	return nil
}

type fakeMessenger struct {
	sent   []string
	doc    []byte
	docErr error
}

func (f *fakeMessenger) Send(chatID int64, text string) {
	f.sent = append(f.sent, text)
}

func (f *fakeMessenger) DownloadDocument(ctx context.Context, fileID string) ([]byte, error) {
	return f.doc, f.docErr
}

type fakePool struct {
	submitted []tasks.Task
	err       error
}

func (f *fakePool) Submit(t tasks.Task) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, t)
	return nil
}

type webhookFixture struct {
	accounts *fakeAccounts
	imports  *fakeImports
	enrich   *fakeEnrich
	phrases  *fakePhrases
	tg       *fakeMessenger
	pool     *fakePool
	router   *gin.Engine
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &webhookFixture{
		accounts: &fakeAccounts{},
		imports:  &fakeImports{},
		enrich:   &fakeEnrich{},
		phrases:  &fakePhrases{},
		tg:       &fakeMessenger{},
		pool:     &fakePool{},
	}
	h := New(testToken, f.accounts, f.imports, f.enrich, f.phrases, f.tg, f.pool)
	f.router = gin.New()
	f.router.POST("/webhook/:token", h.Webhook)
	return f
}

func (f *webhookFixture) post(t *testing.T, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/"+token, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// commandUpdate builds an update whose text carries a bot_command entity, the
// way Telegram actually delivers commands.
func commandUpdate(chatID int64, command string) string {
	return fmt.Sprintf(`{
		"update_id": 1,
		"message": {
			"message_id": 1,
			"chat": {"id": %d, "type": "private"},
			"from": {"id": %d, "is_bot": false, "username": "tester"},
			"text": "%s",
			"entities": [{"offset": 0, "length": %d, "type": "bot_command"}]
		}
	}`, chatID, chatID, command, len(command))
}

func documentUpdate(chatID int64, fileName string) string {
	return fmt.Sprintf(`{
		"update_id": 2,
		"message": {
			"message_id": 2,
			"chat": {"id": %d, "type": "private"},
			"from": {"id": %d, "is_bot": false, "username": "tester"},
			"document": {"file_id": "FILE1", "file_name": "%s"}
		}
	}`, chatID, chatID, fileName)
}

func mustOK(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "ok" {
		t.Fatalf("body = %q, want \"ok\"", got)
	}
}

func TestWebhook_WrongToken_AcksWithoutDispatch(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(t, "not-the-token", commandUpdate(100, "/start"))
	mustOK(t, w)
	if len(f.accounts.registered) != 0 || len(f.tg.sent) != 0 {
		t.Fatalf("update dispatched despite wrong token")
	}
}

func TestWebhook_MalformedBody_Acks(t *testing.T) {
	f := newWebhookFixture(t)
	mustOK(t, f.post(t, testToken, "{invalid json"))
}

func TestWebhook_NonMessageUpdate_Acks(t *testing.T) {
	f := newWebhookFixture(t)
	mustOK(t, f.post(t, testToken, `{"update_id": 3}`))
}

func TestWebhook_Start_RegistersAndGreets(t *testing.T) {
	f := newWebhookFixture(t)

	mustOK(t, f.post(t, testToken, commandUpdate(100, "/start")))
	if len(f.accounts.registered) != 1 || f.accounts.registered[0] != 100 {
		t.Fatalf("user not registered: %v", f.accounts.registered)
	}
	if len(f.tg.sent) != 1 || !strings.Contains(f.tg.sent[0], "нет зарегистрированных") {
		t.Fatalf("greeting mismatch: %v", f.tg.sent)
	}
}

func TestWebhook_Start_ShopOwnerVariant(t *testing.T) {
	f := newWebhookFixture(t)
	f.accounts.hasShop = true

	mustOK(t, f.post(t, testToken, commandUpdate(100, "/start")))
	if len(f.tg.sent) != 1 || !strings.Contains(f.tg.sent[0], "есть зарегистрированный") {
		t.Fatalf("greeting mismatch: %v", f.tg.sent)
	}
}

func TestWebhook_SearchAds_QueuesEnrichTask(t *testing.T) {
	f := newWebhookFixture(t)

	mustOK(t, f.post(t, testToken, commandUpdate(100, "/searchads")))
	if len(f.pool.submitted) != 1 {
		t.Fatalf("expected one queued task, got %d", len(f.pool.submitted))
	}
	task := f.pool.submitted[0]
	if task.Kind != tasks.KindEnrich || task.ChatID != 100 {
		t.Fatalf("wrong task identity: %+v", task)
	}

	// The queued body must actually drive the enrichment service.
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("task body: %v", err)
	}
	if f.enrich.runs != 1 {
		t.Fatalf("enrich not invoked by task body")
	}
	if len(f.tg.sent) != 1 || !strings.Contains(f.tg.sent[0], "Задача запущена") {
		t.Fatalf("confirmation mismatch: %v", f.tg.sent)
	}
}

func TestWebhook_ClearWords_QueuesClearTask(t *testing.T) {
	f := newWebhookFixture(t)

	mustOK(t, f.post(t, testToken, commandUpdate(100, "/clearwords")))
	if len(f.pool.submitted) != 1 || f.pool.submitted[0].Kind != tasks.KindClear {
		t.Fatalf("clear task not queued: %+v", f.pool.submitted)
	}
	if err := f.pool.submitted[0].Run(context.Background()); err != nil {
		t.Fatalf("task body: %v", err)
	}
	if f.phrases.clears != 1 {
		t.Fatalf("clear not invoked by task body")
	}
}

func TestWebhook_TaskAlreadyRunning_TellsUser(t *testing.T) {
	f := newWebhookFixture(t)
	f.pool.err = tasks.ErrAlreadyRunning

	mustOK(t, f.post(t, testToken, commandUpdate(100, "/searchads")))
	if len(f.tg.sent) != 1 || !strings.Contains(f.tg.sent[0], "уже выполняется") {
		t.Fatalf("busy notice mismatch: %v", f.tg.sent)
	}
}

func TestWebhook_QueueFull_TellsUser(t *testing.T) {
	f := newWebhookFixture(t)
	f.pool.err = tasks.ErrQueueFull

	mustOK(t, f.post(t, testToken, commandUpdate(100, "/clearwords")))
	if len(f.tg.sent) != 1 || !strings.Contains(f.tg.sent[0], "слишком много задач") {
		t.Fatalf("overload notice mismatch: %v", f.tg.sent)
	}
}

func TestWebhook_UnknownCommand_ListsAvailable(t *testing.T) {
	f := newWebhookFixture(t)

	mustOK(t, f.post(t, testToken, commandUpdate(100, "/frobnicate")))
	if len(f.tg.sent) != 1 || !strings.Contains(f.tg.sent[0], "/searchads") {
		t.Fatalf("help notice mismatch: %v", f.tg.sent)
	}
}

func TestWebhook_Document_NonZipRejected(t *testing.T) {
	f := newWebhookFixture(t)

	mustOK(t, f.post(t, testToken, documentUpdate(100, "report.xlsx")))
	if f.imports.runs != 0 {
		t.Fatalf("import ran for a non-zip upload")
	}
	if len(f.tg.sent) != 1 || !strings.Contains(f.tg.sent[0], ".zip") {
		t.Fatalf("format notice mismatch: %v", f.tg.sent)
	}
}

func TestWebhook_Document_DownloadsAndImports(t *testing.T) {
	f := newWebhookFixture(t)
	f.tg.doc = []byte("zip-bytes")
	f.imports.res = services.ImportResult{Added: 2, Updated: 1, Processed: 3}

	mustOK(t, f.post(t, testToken, documentUpdate(100, "Запросы.ZIP")))
	if f.imports.runs != 1 {
		t.Fatalf("import not invoked")
	}
	if string(f.imports.got) != "zip-bytes" {
		t.Fatalf("downloaded payload not passed through: %q", f.imports.got)
	}
}

func TestWebhook_Document_ImportErrorWorded(t *testing.T) {
	f := newWebhookFixture(t)
	f.tg.doc = []byte("zip-bytes")
	f.imports.err = importer.ErrEmptySheet

	mustOK(t, f.post(t, testToken, documentUpdate(100, "report.zip")))
	if len(f.tg.sent) != 1 || !strings.Contains(f.tg.sent[0], "пуст") {
		t.Fatalf("empty-sheet notice mismatch: %v", f.tg.sent)
	}
}

func TestWebhook_PlainText_GatedByShop(t *testing.T) {
	f := newWebhookFixture(t)

	body := `{
		"update_id": 4,
		"message": {
			"message_id": 4,
			"chat": {"id": 100, "type": "private"},
			"from": {"id": 100, "is_bot": false, "username": "tester"},
			"text": "привет"
		}
	}`
	mustOK(t, f.post(t, testToken, body))
	if len(f.tg.sent) != 1 || !strings.Contains(f.tg.sent[0], "нет зарегистрированных магазинов") {
		t.Fatalf("gate notice mismatch: %v", f.tg.sent)
	}

	f.tg.sent = nil
	f.accounts.hasShop = true
	mustOK(t, f.post(t, testToken, body))
	if len(f.tg.sent) != 1 || !strings.Contains(f.tg.sent[0], "@tester") {
		t.Fatalf("echo mismatch: %v", f.tg.sent)
	}
}

func TestImportErrorText_AbortedIncludesPartialCounts(t *testing.T) {
	got := importErrorText(
		fmt.Errorf("%w: disk full", services.ErrImportAborted),
		services.ImportResult{Added: 10, Updated: 5, Processed: 15},
	)
	for _, want := range []string{"15", "10", "5"} {
		if !strings.Contains(got, want) {
			t.Fatalf("partial counts missing from %q", got)
		}
	}
}
