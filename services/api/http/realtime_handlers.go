package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/errs"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // same policy as the CORS middleware
	},
}

// handleLiveData pushes fresh KPIs to the client every WSInterval until it disconnects
// GET /ws/data
func (s *Server) handleLiveData(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Client messages are ignored; a read error means the peer went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.WSInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(s.liveUpdate(ctx)); err != nil {
				s.log.Debug("websocket closed", "err", err)
				return
			}
		}
	}
}

func (s *Server) liveUpdate(ctx context.Context) gin.H {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	view, err := s.loadView(ctx, "")
	if err != nil {
		return gin.H{
			"type":      "error",
			"error":     err.Error(),
			"stage":     errs.Stage(err),
			"timestamp": now(),
		}
	}
	return gin.H{
		"type":      "update",
		"kpis":      view.KPIs,
		"timestamp": now(),
	}
}
