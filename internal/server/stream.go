package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/agentops/internal/event"
	"github.com/Iron-Ham/agentops/internal/operation"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// follow replays the operation's buffer and then its live events, closing
// after the pipeline-level complete event. A finished operation already has
// that event buffered, so its stream closes right after the replay.
func (s *Server) follow(ctx context.Context, id string) (<-chan event.Event, error) {
	bus, ok := s.registry.Bus(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", operation.ErrNotFound, id)
	}
	return bus.Stream(ctx, event.Event.IsPipelineComplete), nil
}

func (s *Server) handleSSE(c *gin.Context) {
	id := c.Query("operationId")
	if id == "" {
		c.String(http.StatusBadRequest, "operationId is required")
		return
	}
	events, err := s.follow(c.Request.Context(), id)
	if err != nil {
		c.String(http.StatusNotFound, "operation not found")
		return
	}

	log := s.logger.WithOperation(id)
	log.Debug("sse client connected")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if _, err := io.WriteString(c.Writer, ":ok\n\n"); err != nil {
		return
	}
	c.Writer.Flush()

	for e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			log.Warn("failed to encode event", "error", err)
			continue
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			log.Debug("sse client went away", "error", err)
			return
		}
		c.Writer.Flush()
	}
	log.Debug("sse stream closed")
}

func (s *Server) handleWebSocket(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.registry.Get(id); !ok {
		abortWithError(c, http.StatusNotFound, operation.ErrNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "operation_id", id, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	events, err := s.follow(ctx, id)
	if err != nil {
		return
	}

	log := s.logger.WithOperation(id)
	log.Debug("websocket client connected")

	// The reader only services control frames and notices disconnects.
	gone := make(chan struct{})
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete"))
				log.Debug("websocket stream closed")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Debug("websocket write failed", "error", err)
				}
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			log.Debug("websocket client went away")
			return
		}
	}
}
