// Status endpoints: a human-readable landing page with table counts and a
// machine-readable health probe.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/asamoylenko/wb-phrase-bot/internal/http/middleware"
	"github.com/asamoylenko/wb-phrase-bot/internal/repo"
)

// StatusHandlers serves the root status page and the health probe.
type StatusHandlers struct {
	DB *gorm.DB
}

// NewStatusHandlers constructs StatusHandlers over the given database handle.
func NewStatusHandlers(db *gorm.DB) *StatusHandlers {
	return &StatusHandlers{DB: db}
}

// Index renders a small HTML fragment with live table counts. It is meant for
// a human checking that the container is up, not for machines.
func (h *StatusHandlers) Index(c *gin.Context) {
	counts, err := repo.CountAll(c.Request.Context(), h.DB)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("status counts failed")
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusInternalServerError, "<h1>Бот работает!</h1><p>База данных недоступна.</p>")
		return
	}

	body := fmt.Sprintf(
		"<h1>Бот работает!</h1>"+
			"<p>Пользователей в базе: %d</p>"+
			"<p>Магазинов в базе: %d</p>"+
			"<p>Фраз в базе: %d</p>",
		counts.Users, counts.Shops, counts.Phrases,
	)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, body)
}

// Health is a liveness probe. It pings the database so orchestrators restart
// the container when the storage handle has gone bad.
func (h *StatusHandlers) Health(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
