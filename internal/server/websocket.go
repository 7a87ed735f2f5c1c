// Package server exposes the rules engine over websocket. Clients send
// named JSON messages for the engine's operation surface and receive
// game-state broadcasts plus named notifications mirrored from the
// engine's event bus.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chesstris/chesstris-server-go/internal/config"
	"github.com/chesstris/chesstris-server-go/internal/game"
	"github.com/chesstris/chesstris-server-go/internal/game/rules"
	"github.com/chesstris/chesstris-server-go/internal/repository"
)

// wsMessage is the envelope for every inbound and outbound message.
type wsMessage struct {
	Type     string          `json:"type"`
	GameID   string          `json:"game_id,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
	OK       *bool           `json:"ok,omitempty"`
}

type createGameData struct {
	Players     []string `json:"players"`
	BoardWidth  int      `json:"board_width,omitempty"`
	BoardHeight int      `json:"board_height,omitempty"`
}

type moveData struct {
	Direction string `json:"direction"`
}

type cellData struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type resourceData struct {
	PlayerID string `json:"player_id"`
	Amount   int    `json:"amount"`
}

type stateReplaceData struct {
	Snapshot string `json:"snapshot"` // base64-encoded gob snapshot
}

// client's gameID and playerID are written on the readPump goroutine and
// read on the hub goroutine during broadcasts; both sides go through the
// hub mutex.
type client struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	gameID   string
}

// busEvent is an engine event queued for broadcast. Bus delivery happens
// while the session mutex is held, so the subscriber only enqueues here
// and the hub goroutine does the actual fan-out.
type busEvent struct {
	gameID string
	event  rules.Event
}

// Hub routes websocket clients and mirrors engine notifications outward.
type Hub struct {
	logger  *zap.Logger
	cfg     config.WebSocketConfig
	gameCfg config.GameConfig
	manager *game.Manager
	results *repository.ResultRepository // nil disables persistence

	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	events     chan busEvent
	done       chan struct{}
}

// NewHub creates a hub serving games from the manager. results may be nil.
func NewHub(cfg config.WebSocketConfig, gameCfg config.GameConfig, manager *game.Manager, results *repository.ResultRepository, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger,
		cfg:     cfg,
		gameCfg: gameCfg,
		manager: manager,
		results: results,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan busEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run processes client registration and engine-event fan-out until the
// context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("player", c.playerID))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case evt := <-h.events:
			h.dispatchEvent(evt)
		}
	}
}

// eventNames maps engine events to the named notifications mirrored to
// clients.
var eventNames = map[rules.EventType]string{
	rules.EventScoreChanged:     "score_changed",
	rules.EventLevelChanged:     "level_changed",
	rules.EventResourcesChanged: "resources_changed",
	rules.EventPieceCaptured:    "piece_captured",
	rules.EventPlayerEliminated: "player_eliminated",
	rules.EventGameFinished:     "game_finished",
	rules.EventPaused:           "paused",
	rules.EventResumed:          "resumed",
}

// dispatchEvent turns an engine event into a named outbound message and,
// after any mutation, a fresh game_state broadcast.
func (h *Hub) dispatchEvent(evt busEvent) {
	if name, ok := eventNames[evt.event.Type]; ok {
		data, _ := json.Marshal(map[string]any{
			"player_id": evt.event.PlayerID,
			"amount":    evt.event.Amount,
			"target_id": evt.event.TargetID,
			"detail":    evt.event.Data,
		})
		h.broadcastToGame(evt.gameID, wsMessage{Type: name, GameID: evt.gameID, Data: data})
	}

	if evt.event.Type == rules.EventGameFinished {
		h.persistResult(evt.gameID, evt.event.PlayerID)
	}
	if evt.event.Type == rules.EventStateChanged || evt.event.Type == rules.EventGameFinished {
		h.broadcastState(evt.gameID)
	}
}

func (h *Hub) persistResult(gameID, winner string) {
	if h.results == nil {
		return
	}
	session, ok := h.manager.GetGame(gameID)
	if !ok {
		return
	}
	view := session.View()
	result := repository.MatchResult{
		GameID:     gameID,
		Winner:     winner,
		FinishedAt: time.Now(),
	}
	for _, p := range view.Players {
		result.Players = append(result.Players, repository.PlayerResult{
			PlayerID:   p.ID,
			Score:      p.Score,
			Level:      p.Level,
			Lines:      p.Lines,
			Eliminated: p.Eliminated,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.results.SaveResult(ctx, result); err != nil {
		h.logger.Warn("failed to save match result",
			zap.String("game_id", gameID),
			zap.Error(err),
		)
	}
}

func (h *Hub) broadcastState(gameID string) {
	session, ok := h.manager.GetGame(gameID)
	if !ok {
		return
	}
	data, err := json.Marshal(session.View())
	if err != nil {
		h.logger.Error("failed to marshal game view", zap.Error(err))
		return
	}
	h.broadcastToGame(gameID, wsMessage{Type: "game_state", GameID: gameID, Data: data})
}

func (h *Hub) broadcastToGame(gameID string, msg wsMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.gameID != gameID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Slow consumer; drop the frame rather than block the hub.
		}
	}
}

func (h *Hub) sendTo(c *client, msg wsMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (h *Hub) reply(c *client, msgType, gameID string, ok bool, errText string) {
	h.sendTo(c, wsMessage{Type: msgType, GameID: gameID, OK: &ok, Error: errText})
}

func (h *Hub) handleMessage(c *client, msg wsMessage) {
	switch msg.Type {
	case "create_game":
		h.handleCreateGame(c, msg)
		return
	case "join_game":
		h.handleJoinGame(c, msg)
		return
	}

	session, ok := h.manager.GetGame(c.gameID)
	if !ok {
		h.reply(c, msg.Type, c.gameID, false, "no active game for client")
		return
	}

	switch msg.Type {
	case "state":
		data, err := json.Marshal(session.View())
		if err != nil {
			return
		}
		h.sendTo(c, wsMessage{Type: "game_state", GameID: c.gameID, Data: data})

	case "spawn":
		session.Spawn()
		h.reply(c, msg.Type, c.gameID, true, "")

	case "move":
		var data moveData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.reply(c, msg.Type, c.gameID, false, "invalid move payload")
			return
		}
		dir, ok := parseMoveDirection(data.Direction)
		if !ok {
			h.reply(c, msg.Type, c.gameID, false, "unknown direction")
			return
		}
		h.reply(c, msg.Type, c.gameID, session.MoveFalling(dir), "")

	case "rotate":
		var data moveData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.reply(c, msg.Type, c.gameID, false, "invalid rotate payload")
			return
		}
		dir := game.RotateCW
		if data.Direction == "ccw" {
			dir = game.RotateCCW
		}
		h.reply(c, msg.Type, c.gameID, session.RotateFalling(dir), "")

	case "hard_drop":
		distance := session.HardDrop()
		data, _ := json.Marshal(map[string]int{"distance": distance})
		h.sendTo(c, wsMessage{Type: "hard_drop", GameID: c.gameID, Data: data})

	case "select":
		var data cellData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.reply(c, msg.Type, c.gameID, false, "invalid select payload")
			return
		}
		h.reply(c, msg.Type, c.gameID, session.Select(data.X, data.Y, c.playerID), "")

	case "chess_move":
		var data cellData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.reply(c, msg.Type, c.gameID, false, "invalid chess_move payload")
			return
		}
		h.reply(c, msg.Type, c.gameID, session.MoveSelected(data.X, data.Y), "")

	case "pause":
		session.Pause()
		h.reply(c, msg.Type, c.gameID, true, "")

	case "resume":
		session.Resume()
		h.reply(c, msg.Type, c.gameID, true, "")

	case "set_resources":
		var data resourceData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.reply(c, msg.Type, c.gameID, false, "invalid resource payload")
			return
		}
		session.SetResources(data.PlayerID, data.Amount)
		h.reply(c, msg.Type, c.gameID, true, "")

	case "add_resources":
		var data resourceData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.reply(c, msg.Type, c.gameID, false, "invalid resource payload")
			return
		}
		session.AddResources(data.PlayerID, data.Amount)
		h.reply(c, msg.Type, c.gameID, true, "")

	case "subtract_resources":
		var data resourceData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.reply(c, msg.Type, c.gameID, false, "invalid resource payload")
			return
		}
		h.reply(c, msg.Type, c.gameID, session.SubtractResources(data.PlayerID, data.Amount), "")

	case "state_replace":
		var data stateReplaceData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.reply(c, msg.Type, c.gameID, false, "invalid state payload")
			return
		}
		raw, err := base64.StdEncoding.DecodeString(data.Snapshot)
		if err != nil {
			h.reply(c, msg.Type, c.gameID, false, "invalid snapshot encoding")
			return
		}
		snap, err := game.DeserializeFromBytes(raw)
		if err != nil {
			h.reply(c, msg.Type, c.gameID, false, "invalid snapshot")
			return
		}
		if err := session.Restore(snap); err != nil {
			h.reply(c, msg.Type, c.gameID, false, err.Error())
			return
		}
		h.reply(c, msg.Type, c.gameID, true, "")

	default:
		h.logger.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

func (h *Hub) handleCreateGame(c *client, msg wsMessage) {
	var data createGameData
	if err := json.Unmarshal(msg.Data, &data); err != nil || len(data.Players) < 2 {
		h.reply(c, msg.Type, "", false, "create_game requires at least 2 players")
		return
	}
	cfg := game.SessionConfig{
		BoardWidth:  h.gameCfg.BoardWidth,
		BoardHeight: h.gameCfg.BoardHeight,
	}
	if data.BoardWidth > 0 {
		cfg.BoardWidth = data.BoardWidth
	}
	if data.BoardHeight > 0 {
		cfg.BoardHeight = data.BoardHeight
	}

	session, err := h.manager.CreateGame(data.Players, cfg)
	if err != nil {
		h.reply(c, msg.Type, "", false, err.Error())
		return
	}
	gameID := session.ID()
	session.Events().Subscribe(func(evt rules.Event) {
		select {
		case h.events <- busEvent{gameID: gameID, event: evt}:
		default:
			// Event queue full; the next state broadcast covers it.
		}
	})

	h.setClientGame(c, gameID, msg.PlayerID)
	h.logger.Info("game created over websocket",
		zap.String("game_id", gameID),
		zap.Strings("players", data.Players),
	)

	viewData, _ := json.Marshal(session.View())
	h.sendTo(c, wsMessage{Type: "game_state", GameID: gameID, Data: viewData})
}

func (h *Hub) handleJoinGame(c *client, msg wsMessage) {
	session, ok := h.manager.GetGame(msg.GameID)
	if !ok {
		h.reply(c, msg.Type, msg.GameID, false, "game not found")
		return
	}
	h.setClientGame(c, msg.GameID, msg.PlayerID)

	viewData, _ := json.Marshal(session.View())
	h.sendTo(c, wsMessage{Type: "game_state", GameID: msg.GameID, Data: viewData})
}

// setClientGame binds a client to a game under the hub mutex, since the
// hub goroutine reads these fields while broadcasting.
func (h *Hub) setClientGame(c *client, gameID, playerID string) {
	h.mu.Lock()
	c.gameID = gameID
	c.playerID = playerID
	h.mu.Unlock()
}

func parseMoveDirection(s string) (game.MoveDirection, bool) {
	switch s {
	case "left":
		return game.MoveLeft, true
	case "right":
		return game.MoveRight, true
	case "down":
		return game.MoveDown, true
	default:
		return 0, false
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Debug("dropping malformed message", zap.Error(err))
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// ServeWS upgrades an HTTP request to a websocket client connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 256)}
	h.register <- c
	go c.writePump()
	go c.readPump(h)
}

// Start runs the hub and the websocket listener until the context is
// cancelled.
func Start(ctx context.Context, hub *Hub) error {
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)

	srv := &http.Server{Addr: hub.cfg.Address, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	hub.logger.Info("websocket server listening", zap.String("address", hub.cfg.Address))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
