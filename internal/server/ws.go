package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerWSRoute(mux *http.ServeMux, hub *Hub, sess Session) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		// Subscribe before snapshotting so events arriving between the
		// snapshot and the pump are not lost.
		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		snapshot := SessionSnapshotEvent{
			Event:      newEvent("session_snapshot", time.Now().UTC()),
			Status:     sess.Status(),
			Draft:      sess.Draft(),
			Recordings: sess.Recordings(),
		}
		payload, err := json.Marshal(snapshot)
		if err == nil {
			err = conn.WriteMessage(websocket.TextMessage, payload)
		}
		if err != nil {
			log.Printf("ws snapshot error: %v", err)
			return
		}

		// Read pump: the client sends nothing meaningful, but reading
		// surfaces the close frame so the writer is not parked on an
		// idle hub channel after a disconnect.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-gone:
				return
			}
		}
	})
}
