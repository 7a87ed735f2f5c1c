package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chesstris/chesstris-server-go/internal/game/rules"
)

// SessionConfig carries per-game construction options. Zero values fall
// back to defaults; nil collaborators fall back to no-op implementations.
type SessionConfig struct {
	BoardWidth  int
	BoardHeight int
	Seed        int64           // rng seed; 0 seeds from the clock
	LocalPlayer string          // player the resource-gain clamp applies to
	Sponsors    SponsorProvider // bidding collaborator, may be absent
	Notifier    EliminationNotifier
}

// Session is one game instance. All state is owned exclusively by the
// session; every public operation is a synchronous atomic transition
// guarded by the session mutex, so the engine stays logically
// single-threaded per board.
type Session struct {
	id     string
	logger *zap.Logger

	mu          sync.Mutex
	board       *Board
	boardWidth  int
	boardHeight int
	players     map[string]*Player
	zones       map[string]*HomeZone
	pieces      map[string]*ChessPiece
	captured    []*ChessPiece
	falling     *FallingPiece
	selected    *ChessPiece
	selectedBy  string
	legalSet    map[[2]int]bool
	turns       *rules.TurnManager
	bus         *rules.EventBus
	sponsors    SponsorProvider
	notifier    EliminationNotifier
	rng         *rand.Rand
	paused      bool
	localPlayer string
	startedAt   time.Time
}

// NewSession creates a session for the given players in seating order.
// Home zones are not placed and no piece is spawned; callers run
// InitHomeZone per player and Spawn to start play.
func NewSession(id string, playerIDs []string, cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	if len(playerIDs) < 2 {
		return nil, fmt.Errorf("session %s needs at least 2 players, got %d", id, len(playerIDs))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BoardWidth < MinBoardSize {
		cfg.BoardWidth = DefaultBoardWidth
	}
	if cfg.BoardHeight < MinBoardSize {
		cfg.BoardHeight = DefaultBoardHeight
	}
	if cfg.Sponsors == nil {
		cfg.Sponsors = NopSponsorProvider{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopEliminationNotifier{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	players := make(map[string]*Player, len(playerIDs))
	for _, pid := range playerIDs {
		if _, dup := players[pid]; dup {
			return nil, fmt.Errorf("duplicate player %s in session %s", pid, id)
		}
		players[pid] = &Player{ID: pid, Name: pid, Level: 1}
	}

	return &Session{
		id:          id,
		logger:      logger,
		board:       NewBoard(cfg.BoardWidth, cfg.BoardHeight),
		boardWidth:  cfg.BoardWidth,
		boardHeight: cfg.BoardHeight,
		players:     players,
		zones:       make(map[string]*HomeZone),
		pieces:      make(map[string]*ChessPiece),
		turns:       rules.NewTurnManager(playerIDs),
		bus:         rules.NewEventBus(),
		sponsors:    cfg.Sponsors,
		notifier:    cfg.Notifier,
		rng:         rand.New(rand.NewSource(seed)),
		localPlayer: cfg.LocalPlayer,
		startedAt:   time.Now(),
	}, nil
}

// ID returns the session's game ID.
func (s *Session) ID() string {
	return s.id
}

// Events returns the session's event bus for subscribers. Notifications
// are delivered synchronously after each mutating call.
func (s *Session) Events() *rules.EventBus {
	return s.bus
}

// publishLocked emits an event while the session mutex is held. The bus is
// synchronous, so listeners observe a consistent post-transition state but
// must not call back into the session.
func (s *Session) publishLocked(evt rules.Event) {
	s.bus.Publish(evt)
}

// healIfNeeded rebuilds a fresh board when the grid is missing or
// malformed, re-marking zones and re-placing surviving pieces. Structural
// faults are the one class recovered rather than reported: the engine must
// never leave the game unplayable.
func (s *Session) healIfNeeded() {
	if s.board != nil && s.board.Width() == s.boardWidth && s.board.Height() == s.boardHeight {
		return
	}
	s.logger.Warn("rebuilding malformed board", zap.String("game_id", s.id))
	s.board = NewBoard(s.boardWidth, s.boardHeight)
	for _, zone := range s.zones {
		s.board.MarkZone(zone.Owner, zone.X, zone.Y, zone.Width, zone.Height)
	}
	for _, piece := range s.pieces {
		if piece.Captured {
			continue
		}
		if cell := s.board.CellAt(piece.X, piece.Y); cell != nil {
			cell.Piece = piece
		}
	}
	s.selected = nil
	s.selectedBy = ""
	s.legalSet = nil
}

// Pause halts the gravity tick and all action dispatch.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	s.publishLocked(rules.NewEvent(rules.EventPaused, s.id, s.turns.ActivePlayer()))
}

// Resume restarts action dispatch. Missed gravity ticks are not replayed.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	s.publishLocked(rules.NewEvent(rules.EventResumed, s.id, s.turns.ActivePlayer()))
}

// Paused reports whether the session is paused.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// ActivePlayer returns the player who currently has the turn.
func (s *Session) ActivePlayer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns.ActivePlayer()
}

// Phase returns the current turn phase.
func (s *Session) Phase() rules.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns.CurrentPhase()
}

// Finished reports whether the game reached its terminal state.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns.Finished()
}

// Winner returns the winning player once the game is finished.
func (s *Session) Winner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns.Winner()
}

// PlayerState returns a copy of the player's ledger state.
func (s *Session) PlayerState(playerID string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return Player{}, false
	}
	return *player, true
}

// FallingPiece returns a copy of the current falling piece, or nil.
func (s *Session) FallingPiece() *FallingPiece {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.falling == nil {
		return nil
	}
	return s.falling.Clone()
}

// GravityInterval derives the gravity tick interval from the active
// player's level: faster with every level, floored at 100ms.
func (s *Session) GravityInterval(base time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	level := 1
	if player, ok := s.players[s.turns.ActivePlayer()]; ok {
		level = player.Level
	}
	interval := base - time.Duration(level-1)*50*time.Millisecond
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return interval
}

// PlayerView is the read-only ledger projection for one player.
type PlayerView struct {
	ID         string `json:"id"`
	Resources  int    `json:"resources"`
	Score      int    `json:"score"`
	Level      int    `json:"level"`
	Lines      int    `json:"lines"`
	Eliminated bool   `json:"eliminated"`
}

// SessionView is the complete read-only projection consumed by rendering
// and input collaborators. It never aliases live engine state.
type SessionView struct {
	GameID       string        `json:"game_id"`
	BoardWidth   int           `json:"board_width"`
	BoardHeight  int           `json:"board_height"`
	Cells        []CellView    `json:"cells"`
	Players      []PlayerView  `json:"players"`
	ActivePlayer string        `json:"active_player"`
	Phase        string        `json:"phase"`
	TurnNumber   int           `json:"turn_number"`
	Finished     bool          `json:"finished"`
	Winner       string        `json:"winner,omitempty"`
	Paused       bool          `json:"paused"`
	Falling      *FallingPiece `json:"falling,omitempty"`
	Ghost        *FallingPiece `json:"ghost,omitempty"`
	LegalMoves   [][2]int      `json:"legal_moves,omitempty"`
}

// View builds a snapshot of the whole session for external consumers.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := SessionView{
		GameID:       s.id,
		BoardWidth:   s.board.Width(),
		BoardHeight:  s.board.Height(),
		Cells:        s.board.Snapshot(),
		ActivePlayer: s.turns.ActivePlayer(),
		Phase:        s.turns.CurrentPhase().String(),
		TurnNumber:   s.turns.TurnNumber(),
		Finished:     s.turns.Finished(),
		Winner:       s.turns.Winner(),
		Paused:       s.paused,
	}
	for _, pid := range s.turns.PlayerOrder() {
		if player, ok := s.players[pid]; ok {
			view.Players = append(view.Players, PlayerView{
				ID:         player.ID,
				Resources:  player.Resources,
				Score:      player.Score,
				Level:      player.Level,
				Lines:      player.Lines,
				Eliminated: player.Eliminated,
			})
		}
	}
	if s.falling != nil {
		view.Falling = s.falling.Clone()
		ghost := s.falling.Clone()
		for s.canPlace(ghost, 0, 1, ghost.Offsets) {
			ghost.Y++
		}
		view.Ghost = ghost
	}
	for dest := range s.legalSet {
		view.LegalMoves = append(view.LegalMoves, dest)
	}
	return view
}
