package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/hello-pdf-submission/internal/middleware"
	"github.com/stemsi/hello-pdf-submission/internal/response"
	"github.com/stemsi/hello-pdf-submission/internal/service"
	ws "github.com/stemsi/hello-pdf-submission/internal/websocket"
)

// snapshotGradeLimit bounds the grade history sent when a monitor attaches.
const snapshotGradeLimit = 50

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// SubmissionSubscriber attaches to the submission feed of one block usage.
type SubmissionSubscriber interface {
	Subscribe(ctx context.Context, usageID string) *redis.PubSub
}

// MonitorHandler streams a block's submission activity to authors.
type MonitorHandler struct {
	feed           SubmissionSubscriber
	monitorService *service.MonitorService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	feed SubmissionSubscriber,
	monitorService *service.MonitorService,
	log zerolog.Logger,
	allowedOrigins []string,
) *MonitorHandler {
	return &MonitorHandler{
		feed:           feed,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ListSubmissions godoc
// GET /api/v1/blocks/:usage_id/submissions
func (h *MonitorHandler) ListSubmissions(c *gin.Context) {
	usageID, ok := usageIDParam(c)
	if !ok {
		return
	}

	snapshot, err := h.monitorService.Snapshot(c.Request.Context(), usageID, snapshotGradeLimit)
	if err != nil {
		h.log.Error().Err(err).Str("usage_id", usageID).Msg("Failed to load submissions")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, snapshot)
}

// MonitorStream godoc
// WS /ws/v1/blocks/:usage_id/monitor
// Sends a snapshot, then forwards submitted/reset events as they happen.
func (h *MonitorHandler) MonitorStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	usageID, ok := usageIDParam(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("author_id", claims.Subject).
		Str("usage_id", usageID).
		Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before the snapshot so nothing published in between is lost.
	pubsub := h.feed.Subscribe(ctx, usageID)
	defer pubsub.Close()
	feed := pubsub.Channel()

	snapshot, err := h.monitorService.Snapshot(ctx, usageID, snapshotGradeLimit)
	if err != nil {
		wsLog.Error().Err(err).Msg("Failed to build monitor snapshot")
		ws.WriteError(conn, "failed to load submissions")
		return
	}
	if err := ws.WriteTyped(conn, ws.SnapshotResponse{Event: ws.EventSnapshot, Data: snapshot}); err != nil {
		return
	}

	wsLog.Info().Msg("Author attached to submission monitor")

	pings := make(chan struct{}, 1)
	go h.readLoop(conn, cancel, pings, wsLog)

	keepAlive := time.NewTicker(ws.PingInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			wsLog.Info().Msg("Author detached from submission monitor")
			return

		case msg, ok := <-feed:
			if !ok {
				return
			}
			if err := ws.WriteTyped(conn, ws.SubmissionResponse{
				Event: ws.EventSubmission,
				Data:  json.RawMessage(msg.Payload),
			}); err != nil {
				return
			}

		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}

		case <-keepAlive.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		}
	}
}

// readLoop owns all reads on conn. Writes stay on the caller's goroutine,
// so ping actions are handed over through pings.
func (h *MonitorHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc, pings chan<- struct{}, log zerolog.Logger) {
	defer cancel()

	conn.SetPongHandler(func(string) error {
		return ws.ExtendReadDeadline(conn)
	})

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		if msg.Action == ws.ActionPing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}
