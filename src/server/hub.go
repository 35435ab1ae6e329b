package server

import (
	"net/http"
	"time"

	"umap-replay/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *ReplayServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			// Send latest frame on connect so the rendering side has
			// something to draw before the next tick
			s.stateMutex.RLock()
			if s.latestFrame != nil {
				client.send <- s.latestFrame
			}
			s.stateMutex.RUnlock()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}

		case frame := <-s.broadcast:
			// Last write wins: frames may arrive out of cursor order and
			// each one is simply the latest known for the step it names
			s.stateMutex.Lock()
			s.latestFrame = frame
			s.stateMutex.Unlock()

			// History persistence is best-effort
			if s.Store != nil {
				if err := s.Store.SaveFrame(frame); err != nil {
					s.Logger.Warning("failed to persist frame for step %d: %v", frame.TimeStep, err)
				}
			}

			// Broadcast to all clients
			for client := range s.clients {
				select {
				case client.send <- frame:
					// Frame sent successfully
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Frame Publisher Implementation
// -----------------------------------------------------------------------------

// Publish queues one per-step frame for broadcast. Non-blocking toward the
// fetch goroutines: if the queue is saturated the frame is dropped, the next
// tick produces a fresher one anyway.
func (s *ReplayServer) Publish(frame *models.MPlaybackFrame) {
	select {
	case s.broadcast <- frame:
	default:
		s.Logger.Warning("broadcast queue full, dropping frame for step %d", frame.TimeStep)
	}
}

// -----------------------------------------------------------------------------

// frameFor wraps already-overlaid coordinates in a publishable frame.
func (s *ReplayServer) frameFor(timeStep int, label string, coords map[string]models.MCoordinate) *models.MPlaybackFrame {
	return &models.MPlaybackFrame{
		Type:        "FRAME",
		TimeStep:    timeStep,
		Label:       label,
		Coordinates: coords,
		Colors:      s.Clusters.Colors(),
		Timestamp:   time.Now().Unix(),
	}
}

// -----------------------------------------------------------------------------
// Helper Methods
// -----------------------------------------------------------------------------

// LatestFrame - thread-safe read of the most recently published frame
func (s *ReplayServer) LatestFrame() *models.MPlaybackFrame {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.latestFrame
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MPlaybackFrame, 256),
	}

	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *ReplayServer) HandleClientMessage(client *Client, message []byte) {
	cmd, err := parseClientCommand(message)
	if err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	// A subscriber gets the latest frame immediately
	s.stateMutex.RLock()
	frame := s.latestFrame
	s.stateMutex.RUnlock()

	if frame == nil {
		return
	}

	select {
	case client.send <- frame:
	default:
		// Client buffer full; the hub's broadcast path prunes slow clients
	}
}
