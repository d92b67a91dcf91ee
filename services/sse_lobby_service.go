package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// sseKeepalive is how often a comment frame is written so proxies keep the
// connection open between rounds.
const sseKeepalive = 15 * time.Second

// sseLobbyEvent is the wire shape of one pushed event: the bus event
// annotated with the subscriber's own username.
type sseLobbyEvent struct {
	Type      LobbyEventType `json:"type"`
	Data      any            `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Username  string         `json:"username"`
}

// StreamLobbyEventsSSE pushes lobby events to one client over a long-lived
// SSE connection. Each connection holds exactly one bus subscription, which
// is released when the client disconnects or falls too far behind.
func (s *LobbyService) StreamLobbyEventsSSE(c *fiber.Ctx) error {
	username, _ := c.Locals("username").(string)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	ctx := c.Context()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		events, cancel := s.events.Subscribe()
		defer cancel()

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		// Initial comment frame confirms the stream to the client.
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case evt, ok := <-events:
				if !ok {
					// Dropped by the bus (slow consumer).
					return
				}

				payload, err := json.Marshal(sseLobbyEvent{
					Type:      evt.Type,
					Data:      evt.Data,
					Timestamp: evt.Timestamp,
					Username:  username,
				})
				if err != nil {
					continue
				}

				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
				if err := w.Flush(); err != nil {
					// Client disconnected.
					return
				}

			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}
