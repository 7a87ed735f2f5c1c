package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns every active session in the process. Sessions are fully
// isolated from each other: no shared boards, pieces, or zones.
type Manager struct {
	logger      *zap.Logger
	baseGravity time.Duration

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session *Session
	gravity *gravityDriver
}

// NewManager creates a session manager. baseGravity is the level-1 gravity
// interval; 0 falls back to one second.
func NewManager(baseGravity time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseGravity <= 0 {
		baseGravity = time.Second
	}
	return &Manager{
		logger:      logger,
		baseGravity: baseGravity,
		sessions:    make(map[string]*managedSession),
	}
}

// CreateGame builds a ready-to-play session: home zones placed per seating
// order, first piece spawned, gravity running. Returns the new session.
func (m *Manager) CreateGame(playerIDs []string, cfg SessionConfig) (*Session, error) {
	gameID := uuid.NewString()
	session, err := NewSession(gameID, playerIDs, cfg, m.logger)
	if err != nil {
		return nil, err
	}
	for seat, pid := range playerIDs {
		if err := session.InitHomeZone(pid, seat); err != nil {
			return nil, fmt.Errorf("setting up seat %d: %w", seat, err)
		}
	}
	session.Spawn()

	driver := newGravityDriver(session, m.baseGravity, m.logger)

	m.mu.Lock()
	m.sessions[gameID] = &managedSession{session: session, gravity: driver}
	m.mu.Unlock()

	go driver.run()

	m.logger.Info("game created",
		zap.String("game_id", gameID),
		zap.Strings("players", playerIDs),
		zap.Int("board_width", session.board.Width()),
		zap.Int("board_height", session.board.Height()),
	)
	return session, nil
}

// GetGame returns the session for the game ID.
func (m *Manager) GetGame(gameID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[gameID]
	if !ok {
		return nil, false
	}
	return ms.session, true
}

// ListGames returns the IDs of every active session.
func (m *Manager) ListGames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// EndGame stops gravity and removes the session.
func (m *Manager) EndGame(gameID string) bool {
	m.mu.Lock()
	ms, ok := m.sessions[gameID]
	if ok {
		delete(m.sessions, gameID)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	ms.gravity.halt()
	m.logger.Info("game ended",
		zap.String("game_id", gameID),
		zap.String("winner", ms.session.Winner()),
	)
	return true
}

// Shutdown stops every session's gravity driver.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ms := range m.sessions {
		ms.gravity.halt()
		delete(m.sessions, id)
	}
	m.logger.Info("session manager shut down")
}
