package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chesstris/chesstris-server-go/internal/game/rules"
)

// newTestSession builds a deterministic session without home zones or a
// falling piece; tests set up exactly the state they need.
func newTestSession(t *testing.T, players ...string) *Session {
	t.Helper()
	s, err := NewSession("test-game", players, SessionConfig{Seed: 42}, zap.NewNop())
	require.NoError(t, err)
	return s
}

// collectEvents records every published event type for later inspection.
func collectEvents(s *Session) *[]rules.Event {
	events := &[]rules.Event{}
	s.Events().Subscribe(func(evt rules.Event) {
		*events = append(*events, evt)
	})
	return events
}

func eventTypes(events []rules.Event) []rules.EventType {
	types := make([]rules.EventType, len(events))
	for i, evt := range events {
		types[i] = evt.Type
	}
	return types
}

func TestNewSession(t *testing.T) {
	t.Run("needs at least two players", func(t *testing.T) {
		_, err := NewSession("g", []string{"alice"}, SessionConfig{}, nil)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate players", func(t *testing.T) {
		_, err := NewSession("g", []string{"alice", "alice"}, SessionConfig{}, nil)
		assert.Error(t, err)
	})

	t.Run("starts in the first player's placing phase", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		assert.Equal(t, "test-game", s.ID())
		assert.Equal(t, "alice", s.ActivePlayer())
		assert.Equal(t, rules.PhasePlacing, s.Phase())
		assert.False(t, s.Finished())
		assert.Nil(t, s.FallingPiece())
	})

	t.Run("players start at level 1", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		player, ok := s.PlayerState("alice")
		require.True(t, ok)
		assert.Equal(t, 1, player.Level)
		assert.Equal(t, 0, player.Score)
	})
}

func TestPauseResume(t *testing.T) {
	s := newTestSession(t, "alice", "bob")
	events := collectEvents(s)
	s.SpawnKind(KindT)

	s.Pause()
	assert.True(t, s.Paused())
	assert.False(t, s.MoveFalling(MoveLeft), "moves are rejected while paused")
	assert.False(t, s.RotateFalling(RotateCW))
	assert.Equal(t, 0, s.HardDrop())

	before := s.FallingPiece()
	s.Tick()
	after := s.FallingPiece()
	assert.Equal(t, before.Y, after.Y, "gravity is suspended while paused")

	s.Pause() // repeated pause is a no-op
	s.Resume()
	assert.False(t, s.Paused())
	assert.True(t, s.MoveFalling(MoveLeft))

	types := eventTypes(*events)
	assert.Contains(t, types, rules.EventPaused)
	assert.Contains(t, types, rules.EventResumed)
}

func TestGravityInterval(t *testing.T) {
	s := newTestSession(t, "alice", "bob")
	base := time.Second

	assert.Equal(t, base, s.GravityInterval(base), "level 1 uses the base interval")

	s.players["alice"].Level = 5
	assert.Equal(t, 800*time.Millisecond, s.GravityInterval(base))

	s.players["alice"].Level = 50
	assert.Equal(t, 100*time.Millisecond, s.GravityInterval(base), "interval is floored")
}

func TestSessionView(t *testing.T) {
	s := newTestSession(t, "alice", "bob")
	require.NoError(t, s.InitHomeZone("alice", 0))
	require.NoError(t, s.InitHomeZone("bob", 1))
	s.SpawnKind(KindI)

	view := s.View()
	assert.Equal(t, "test-game", view.GameID)
	assert.Equal(t, DefaultBoardWidth, view.BoardWidth)
	assert.Equal(t, "PLACING", view.Phase)
	assert.Equal(t, "alice", view.ActivePlayer)
	assert.Equal(t, 1, view.TurnNumber)
	assert.False(t, view.Finished)
	require.Len(t, view.Players, 2)
	assert.Equal(t, "alice", view.Players[0].ID)

	require.NotNil(t, view.Falling)
	require.NotNil(t, view.Ghost)
	assert.Greater(t, view.Ghost.Y, view.Falling.Y, "the ghost projects the landing row")
	assert.NotEmpty(t, view.Cells, "zone and piece cells are included")

	// The view must not alias engine state.
	view.Falling.X = -99
	assert.NotEqual(t, -99, s.FallingPiece().X)
}

func TestHealRebuildsMalformedBoard(t *testing.T) {
	s := newTestSession(t, "alice", "bob")
	require.NoError(t, s.InitHomeZone("alice", 0))

	var king *ChessPiece
	for _, piece := range s.pieces {
		if piece.Kind == King {
			king = piece
		}
	}
	require.NotNil(t, king)

	// Corrupt the grid and trigger any guarded operation.
	s.board = nil
	spawned := s.SpawnKind(KindO)
	require.NotNil(t, spawned)

	cell := s.board.CellAt(king.X, king.Y)
	require.NotNil(t, cell)
	assert.Equal(t, king, cell.Piece, "pieces are re-placed after a rebuild")
	assert.Equal(t, "alice", cell.ZoneOwner, "zones are re-marked after a rebuild")
}
