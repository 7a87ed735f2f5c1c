package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestManager uses an hour-long gravity interval so background ticks
// never interfere with assertions.
func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(time.Hour, zap.NewNop())
	t.Cleanup(m.Shutdown)
	return m
}

func TestCreateGame(t *testing.T) {
	m := newTestManager(t)

	session, err := m.CreateGame([]string{"alice", "bob"}, SessionConfig{Seed: 42})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.ID())

	// The game comes up ready to play: zones placed, first piece falling.
	view := session.View()
	assert.NotEmpty(t, view.Cells)
	require.NotNil(t, view.Falling)
	assert.Equal(t, "alice", view.ActivePlayer)
	require.Len(t, view.Players, 2)
}

func TestCreateGameRejectsBadRosters(t *testing.T) {
	m := newTestManager(t)

	_, err := m.CreateGame([]string{"alice"}, SessionConfig{})
	assert.Error(t, err)

	_, err = m.CreateGame([]string{"alice", "alice"}, SessionConfig{})
	assert.Error(t, err)
}

func TestGetGame(t *testing.T) {
	m := newTestManager(t)
	session, err := m.CreateGame([]string{"alice", "bob"}, SessionConfig{Seed: 42})
	require.NoError(t, err)

	found, ok := m.GetGame(session.ID())
	assert.True(t, ok)
	assert.Same(t, session, found)

	_, ok = m.GetGame("missing")
	assert.False(t, ok)
}

func TestListGames(t *testing.T) {
	m := newTestManager(t)
	assert.Empty(t, m.ListGames())

	first, err := m.CreateGame([]string{"alice", "bob"}, SessionConfig{Seed: 1})
	require.NoError(t, err)
	second, err := m.CreateGame([]string{"carol", "dave"}, SessionConfig{Seed: 2})
	require.NoError(t, err)

	ids := m.ListGames()
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, first.ID())
	assert.Contains(t, ids, second.ID())
}

func TestEndGame(t *testing.T) {
	m := newTestManager(t)
	session, err := m.CreateGame([]string{"alice", "bob"}, SessionConfig{Seed: 42})
	require.NoError(t, err)

	assert.True(t, m.EndGame(session.ID()))
	_, ok := m.GetGame(session.ID())
	assert.False(t, ok)

	assert.False(t, m.EndGame(session.ID()), "a game ends once")
}

func TestShutdown(t *testing.T) {
	m := NewManager(time.Hour, zap.NewNop())
	_, err := m.CreateGame([]string{"alice", "bob"}, SessionConfig{Seed: 42})
	require.NoError(t, err)

	m.Shutdown()
	assert.Empty(t, m.ListGames())
}

// assertSingleOccupancy scans the whole grid for cells holding both a
// locked block and a chess piece.
func assertSingleOccupancy(t *testing.T, s *Session) {
	t.Helper()
	for y := 0; y < s.board.Height(); y++ {
		for x := 0; x < s.board.Width(); x++ {
			cell := s.board.CellAt(x, y)
			assert.False(t, cell.Block != nil && cell.Piece != nil,
				"cell (%d,%d) holds both a block and a piece", x, y)
		}
	}
}

func TestCreateGameFirstTurnNearZones(t *testing.T) {
	m := newTestManager(t)
	session, err := m.CreateGame([]string{"alice", "bob"}, SessionConfig{Seed: 42})
	require.NoError(t, err)

	// The opening piece spawns clear of both home zones and falls freely.
	piece := session.FallingPiece()
	require.NotNil(t, piece)
	for _, block := range piece.Blocks() {
		assert.Empty(t, session.board.CellAt(block[0], block[1]).ZoneOwner)
	}
	require.True(t, session.MoveFalling(MoveDown))
	require.True(t, session.MoveFalling(MoveDown))
	assertSingleOccupancy(t, session)

	// Locking against the bottom zone's pawns keeps cells single-occupant.
	session.HardDrop()
	assertSingleOccupancy(t, session)
	assert.False(t, session.Finished())
	for _, pid := range []string{"alice", "bob"} {
		player, ok := session.PlayerState(pid)
		require.True(t, ok)
		assert.False(t, player.Eliminated)
	}
}

func TestGravityDriverAdvancesThePiece(t *testing.T) {
	m := NewManager(10*time.Millisecond, zap.NewNop())
	t.Cleanup(m.Shutdown)

	session, err := m.CreateGame([]string{"alice", "bob"}, SessionConfig{Seed: 42})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		piece := session.FallingPiece()
		return piece != nil && piece.Y > 0
	}, 2*time.Second, 5*time.Millisecond, "gravity should pull the piece down")
}
