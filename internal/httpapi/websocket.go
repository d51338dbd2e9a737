package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/freeeve/chessbot/internal/bot"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer and the bearer token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSMessage is one websocket frame in either direction. Clients send
// "move" (with Move) or "resign"; the server answers with "state" or
// "error".
type WSMessage struct {
	Type   string         `json:"type"`
	Move   string         `json:"move,omitempty"`
	Game   *bot.GameState `json:"game,omitempty"`
	Error  string         `json:"error,omitempty"`
	Status int            `json:"status,omitempty"`
}

type wsClient struct {
	conn     *websocket.Conn
	send     chan WSMessage
	gameID   string
	playerID string
}

func (h *Handler) gameSocket(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameId"]
	playerID := PlayerID(r.Context())
	gs, err := h.mgr.Game(gameID, playerID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsClient{conn: conn, send: make(chan WSMessage, 16), gameID: gameID, playerID: playerID}
	c.send <- WSMessage{Type: "state", Game: &gs}

	go c.writePump()
	h.readPump(r.Context(), c)
}

// readPump handles client frames until the connection drops. It owns the
// send channel and closes it on exit.
func (h *Handler) readPump(ctx context.Context, c *wsClient) {
	defer close(c.send)

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("game", c.gameID).Msg("websocket error")
			}
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send <- WSMessage{Type: "error", Error: "invalid message", Status: http.StatusBadRequest}
			continue
		}
		c.send <- h.handleWS(ctx, c, msg)
	}
}

func (h *Handler) handleWS(ctx context.Context, c *wsClient, msg WSMessage) WSMessage {
	var (
		gs  bot.GameState
		err error
	)
	switch msg.Type {
	case "move":
		gs, err = h.mgr.PlayMove(ctx, c.gameID, c.playerID, msg.Move)
	case "resign":
		gs, err = h.mgr.Resign(ctx, c.gameID, c.playerID)
	case "state":
		gs, err = h.mgr.Game(c.gameID, c.playerID)
	default:
		return WSMessage{Type: "error", Error: "unknown message type " + msg.Type, Status: http.StatusBadRequest}
	}
	if err != nil {
		return WSMessage{Type: "error", Error: err.Error(), Status: statusOf(err)}
	}
	return WSMessage{Type: "state", Game: &gs}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
