package web

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ironsheep/edgeview/internal/view"
)

const (
	writeWait     = 10 * time.Second
	eventsBacklog = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// events streams a snapshot on connect and after every change, until the
// client disconnects or the session is closed. An open stream keeps the
// session from expiring.
func (a *api) events(c *gin.Context) {
	v := viewFrom(c)

	if release, ok := a.sessions.Watch(c.Param("id")); ok {
		defer release()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	updates := make(chan view.Snapshot, eventsBacklog)
	unsubscribe := v.Subscribe(func(s view.Snapshot) {
		select {
		case updates <- s:
		default:
			log.Println("Event backlog full, dropping snapshot")
		}
	})
	defer unsubscribe()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				return
			}
		}
	}()

	var lastVersion uint64
	send := func(s view.Snapshot) bool {
		if s.Version < lastVersion {
			return true
		}
		lastVersion = s.Version
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(s) == nil
	}

	closeStream := func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(writeWait))
	}

	first := v.Snapshot()
	if !send(first) {
		return
	}
	if first.Closed {
		closeStream()
		return
	}

	for {
		select {
		case <-gone:
			return
		case s := <-updates:
			if !send(s) {
				return
			}
			if s.Closed {
				closeStream()
				return
			}
		}
	}
}
