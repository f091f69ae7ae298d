package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"wager-core/internal/events"
	"wager-core/pkg/logger"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsBuffer     = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket streams bus events to the client. ?topics=price_tick,pnl limits
// the stream; everything is sent by default.
func (s *Server) websocket(c *gin.Context) {
	log := logger.WithComponent("ws")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade error")
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	stream, unsub := s.Bus.Subscribe(wsBuffer, parseTopics(c.Query("topics"))...)
	defer unsub()

	// The read side only services control frames and notices the close.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-stream:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				return
			}
		}
	}
}

func parseTopics(raw string) []events.Event {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	known := make(map[events.Event]bool, len(events.All))
	for _, e := range events.All {
		known[e] = true
	}
	var out []events.Event
	for _, p := range strings.Split(raw, ",") {
		e := events.Event(strings.TrimSpace(p))
		if known[e] {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
