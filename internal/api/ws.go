package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jmlow/goalflow/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// streamEvents streams an execution's lifecycle as JSON frames:
// persisted history first, then live events until the stream closes or
// the client disconnects. Finished executions get history only.
func (s *Server) streamEvents(c *gin.Context) {
	executionID := c.Param("id")
	ctx := c.Request.Context()

	exec, err := s.eng.GetExecution(ctx, executionID)
	if err != nil {
		fail(c, err)
		return
	}

	// Subscribe before replay so nothing falls in the gap.
	live, cancel := s.eng.Events().Subscribe(executionID)
	defer cancel()

	history, err := engine.Replay(ctx, s.store, executionID)
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", map[string]any{"execution": executionID}, err)
		return
	}
	defer conn.Close()

	for _, evt := range history {
		if writeEvent(conn, evt) != nil {
			return
		}
	}
	if exec.Status.Terminal() {
		return
	}

	for {
		select {
		case evt, ok := <-live:
			if !ok {
				return
			}
			if writeEvent(conn, evt) != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, evt any) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(evt)
}
