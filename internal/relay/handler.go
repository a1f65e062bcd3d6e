package relay

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// parseFeeds reads the optional ?feeds=run,vehicle filter. Nil accepts all.
func parseFeeds(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("feeds")
	if q == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, f := range strings.Split(q, ",") {
		if f = strings.TrimSpace(f); f != "" {
			filter[f] = true
		}
	}
	return filter
}

// SSEHandler streams batch events as server-sent events.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		feedFilter := parseFeeds(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if feedFilter != nil && !feedFilter[evt.Feed] {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Feed, evt.Payload)
				flusher.Flush()
			}
		}
	}
}

// wsMessage is the frame sent to WebSocket clients.
const wsMessage = `{"feed":%q,"data":%s}`

// WSHandler streams batch events over a WebSocket, one text frame per event.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feedFilter := parseFeeds(r)
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		// The client only ever closes; reading detects that.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if feedFilter != nil && !feedFilter[evt.Feed] {
					continue
				}
				if err := wsutil.WriteServerText(conn, []byte(fmt.Sprintf(wsMessage, evt.Feed, evt.Payload))); err != nil {
					slog.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
