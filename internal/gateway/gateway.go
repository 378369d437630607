// Package gateway exposes the REST surface of the bridge: chat listing and
// lookup, message sending, group membership mutation and PDF-watch
// configuration.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/edgard/wagate/internal/database"
	apperrors "github.com/edgard/wagate/internal/errors"
	"github.com/edgard/wagate/internal/logger"
	"github.com/edgard/wagate/internal/messenger"
	"github.com/edgard/wagate/internal/whatsapp"
)

// PDFWatcher configures the incoming-PDF forwarding hook.
type PDFWatcher interface {
	Configure(ctx context.Context, groupQuery, forwardToQuery string) error
}

// Gateway wires the HTTP handlers to the messaging façade.
type Gateway struct {
	client    whatsapp.Client
	messenger *messenger.Messenger
	watcher   PDFWatcher
	store     database.Store
	logger    *slog.Logger
}

// New creates a Gateway. store and watcher may be nil; the corresponding
// endpoints then report the feature as unavailable.
func New(client whatsapp.Client, m *messenger.Messenger, watcher PDFWatcher, store database.Store, log *slog.Logger) *Gateway {
	return &Gateway{
		client:    client,
		messenger: m,
		watcher:   watcher,
		store:     store,
		logger:    log.With("component", "gateway"),
	}
}

// Router builds the gin engine with all routes registered.
func (g *Gateway) Router(corsOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(g.logger))

	if len(corsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", g.handleHealth)

	ready := router.Group("/", g.requireReady())
	ready.GET("/groups", g.handleGroups)
	ready.GET("/contacts", g.handleContacts)
	ready.GET("/find_chat", g.handleFindChat)
	ready.POST("/send_chat", g.handleSendChat)
	ready.GET("/group_participants", g.handleGroupParticipants)
	ready.POST("/remove_participant", g.handleRemoveParticipant)
	ready.POST("/remove_all_participants", g.handleRemoveAllParticipants)
	ready.POST("/watch_pdf", g.handleWatchPDF)
	ready.GET("/messages", g.handleMessages)

	return router
}

// requireReady refuses chat-dependent endpoints until the client's initial
// connection has completed.
func (g *Gateway) requireReady() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.client.Ready() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Client not ready",
				"code":  apperrors.CodeNotReady,
			})
			return
		}
		c.Next()
	}
}

// fail maps an application error code to an HTTP status and writes the
// structured error body. Internal detail stays in the server log.
func (g *Gateway) fail(c *gin.Context, err error) {
	code := apperrors.Code(err)

	var status int
	switch code {
	case apperrors.CodeNotReady:
		status = http.StatusServiceUnavailable
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodePermissionDenied:
		status = http.StatusForbidden
	case apperrors.CodeValidation:
		status = http.StatusBadRequest
	case apperrors.CodeUnsupportedMedia:
		status = http.StatusUnsupportedMediaType
	default:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		g.logger.ErrorContext(c.Request.Context(), "Request failed",
			"path", c.Request.URL.Path, "code", code, "error", err)
	}

	c.JSON(status, gin.H{
		"error": apperrors.Message(err),
		"code":  code,
	})
}
