package routers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yusiwen/rtsp4k/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const liveWriteTimeout = 5 * time.Second

// StreamsLive pushes {"message": sessions} over a websocket every LiveInterval
// until the client goes away.
func (h *APIHandler) StreamsLive(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("live status upgrade: ", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.LiveInterval)
	defer ticker.Stop()
	for {
		conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := conn.WriteJSON(gin.H{"message": h.Registry.List()}); err != nil {
			log.Debug("live status client gone: ", err)
			return
		}
		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}
