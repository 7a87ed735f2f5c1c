package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesstris/chesstris-server-go/internal/game/rules"
)

func TestSpawn(t *testing.T) {
	t.Run("spawns at the origin on an open board", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		piece := s.SpawnKind(KindI)

		require.NotNil(t, piece)
		assert.Equal(t, KindI, piece.Kind)
		assert.Equal(t, (DefaultBoardWidth-4)/2, piece.X)
		assert.Equal(t, 0, piece.Y)
		assert.Equal(t, 0, piece.Rotation)
		assert.Equal(t, "alice", piece.Owner, "the active player owns the piece")
	})

	t.Run("respawn replaces the unlocked piece", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		s.SpawnKind(KindT)
		s.MoveFalling(MoveDown)

		piece := s.SpawnKind(KindL)
		assert.Equal(t, KindL, piece.Kind)
		assert.Equal(t, 0, piece.Y, "replacement restarts at the origin")
	})

	t.Run("invalid kind falls back to a random one", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		piece := s.SpawnKind(TetrominoKind(99))
		assert.True(t, piece.Kind.Valid())
	})

	t.Run("sponsor is attached when the provider bids", func(t *testing.T) {
		s, err := NewSession("g", []string{"alice", "bob"}, SessionConfig{
			Seed:     42,
			Sponsors: stubSponsors{Sponsor{ID: "acme", Name: "ACME"}},
		}, nil)
		require.NoError(t, err)

		piece := s.SpawnKind(KindJ)
		require.NotNil(t, piece.Sponsor)
		assert.Equal(t, "acme", piece.Sponsor.ID)
	})
}

func TestSpawnClearsHomeZones(t *testing.T) {
	s := newTestSession(t, "alice", "bob")
	require.NoError(t, s.InitHomeZone("alice", 0))
	require.NoError(t, s.InitHomeZone("bob", 1))

	// The top zone covers the two rows under the spawn column, so the
	// spawn row moves below it.
	piece := s.SpawnKind(KindT)
	assert.Equal(t, zoneShort, piece.Y)

	for _, block := range piece.Blocks() {
		cell := s.board.CellAt(block[0], block[1])
		require.NotNil(t, cell)
		assert.Nil(t, cell.Piece, "a spawned piece never overlaps a chess piece")
		assert.Empty(t, cell.ZoneOwner, "a spawned piece never overlaps a home zone")
	}

	assert.True(t, s.MoveFalling(MoveDown), "the first gravity step succeeds")
	assert.False(t, s.IsToppedOut())
}

type stubSponsors struct {
	sponsor Sponsor
}

func (p stubSponsors) NextSponsor(gameID, playerID string) (Sponsor, bool) {
	return p.sponsor, true
}

func TestMoveFalling(t *testing.T) {
	t.Run("walks left until the wall, then refuses", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		piece := s.SpawnKind(KindI)
		startX := piece.X

		for i := 0; i < startX; i++ {
			require.True(t, s.MoveFalling(MoveLeft))
		}
		assert.Equal(t, 0, s.FallingPiece().X)
		assert.False(t, s.MoveFalling(MoveLeft), "the wall stops the piece")
		assert.Equal(t, 0, s.FallingPiece().X, "a failed lateral move changes nothing")
	})

	t.Run("failed down-move locks the piece", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		s.SpawnKind(KindO)

		moved := true
		for moved {
			moved = s.MoveFalling(MoveDown)
		}
		// The O piece locked at the floor and the next piece spawned.
		assert.NotNil(t, s.board.CellAt(10, DefaultBoardHeight-1).Block)
		require.NotNil(t, s.FallingPiece())
		assert.Equal(t, 0, s.FallingPiece().Y)
		assert.Equal(t, rules.PhaseMoving, s.Phase(), "locking completes the placing phase")
	})

	t.Run("rejected outside the placing phase", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		s.SpawnKind(KindT)
		s.turns.CompletePlacement()

		assert.False(t, s.MoveFalling(MoveLeft))
		assert.False(t, s.RotateFalling(RotateCW))
		assert.Equal(t, 0, s.HardDrop())
	})
}

func TestRotateFalling(t *testing.T) {
	t.Run("clockwise and back restores the layout", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		piece := s.SpawnKind(KindT)
		original := append([][2]int(nil), piece.Offsets...)

		require.True(t, s.RotateFalling(RotateCW))
		assert.Equal(t, 1, s.FallingPiece().Rotation)

		require.True(t, s.RotateFalling(RotateCCW))
		assert.Equal(t, 0, s.FallingPiece().Rotation)
		assert.Equal(t, original, s.FallingPiece().Offsets)
	})

	t.Run("O piece rotation always succeeds unchanged", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		piece := s.SpawnKind(KindO)
		original := append([][2]int(nil), piece.Offsets...)

		assert.True(t, s.RotateFalling(RotateCW))
		assert.Equal(t, original, s.FallingPiece().Offsets)
	})

	t.Run("blocked rotation applies the first fitting wall kick", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		s.SpawnKind(KindT)
		s.falling.X, s.falling.Y = 5, 5

		// Rotating clockwise in place needs (6,5); block it so the
		// (+1,0) kick is the first offset that validates.
		s.board.PlaceBlock(6, 5, &LockedBlock{Kind: KindZ, Owner: "bob"})

		require.True(t, s.RotateFalling(RotateCW))
		piece := s.FallingPiece()
		assert.Equal(t, 6, piece.X, "the piece shifted right by the kick")
		assert.Equal(t, 1, piece.Rotation)
	})

	t.Run("fails when no kick fits", func(t *testing.T) {
		s := newTestSession(t, "alice", "bob")
		s.SpawnKind(KindT)
		s.falling.X, s.falling.Y = 5, 5

		// Wall the whole neighborhood so every kick offset collides.
		for y := 3; y <= 9; y++ {
			for x := 1; x <= 10; x++ {
				if x >= 5 && x <= 7 && y >= 5 && y <= 6 {
					continue // leave the piece's current footprint open
				}
				s.board.PlaceBlock(x, y, &LockedBlock{Kind: KindZ, Owner: "bob"})
			}
		}

		assert.False(t, s.RotateFalling(RotateCW))
		piece := s.FallingPiece()
		assert.Equal(t, 5, piece.X, "a failed rotation changes nothing")
		assert.Equal(t, 0, piece.Rotation)
	})
}

func TestHardDrop(t *testing.T) {
	s := newTestSession(t, "alice", "bob")
	s.SpawnKind(KindI)

	distance := s.HardDrop()
	assert.Equal(t, DefaultBoardHeight-2, distance)

	// The I piece locked flat on the floor.
	for x := 10; x < 14; x++ {
		assert.NotNil(t, s.board.CellAt(x, DefaultBoardHeight-1).Block)
	}
	require.NotNil(t, s.FallingPiece(), "the next piece spawns after the lock")
	assert.Equal(t, rules.PhaseMoving, s.Phase())
}

func TestLockClearsCompletedRow(t *testing.T) {
	s := newTestSession(t, "alice", "bob")
	events := collectEvents(s)

	// Fill the bottom row except the four cells under the spawn column.
	bottom := DefaultBoardHeight - 1
	for x := 0; x < DefaultBoardWidth; x++ {
		if x >= 10 && x < 14 {
			continue
		}
		s.board.PlaceBlock(x, bottom, &LockedBlock{Kind: KindJ, Owner: "bob"})
	}

	s.SpawnKind(KindI)
	s.HardDrop()

	for x := 0; x < DefaultBoardWidth; x++ {
		assert.Nil(t, s.board.CellAt(x, bottom).Block, "the completed row is swept")
	}

	player, ok := s.PlayerState("alice")
	require.True(t, ok)
	assert.Equal(t, 40, player.Score, "a single clear at level 1 scores 40")
	assert.Equal(t, 1, player.Lines)

	var clearedEvent *rules.Event
	for i := range *events {
		if (*events)[i].Type == rules.EventRowsCleared {
			clearedEvent = &(*events)[i]
		}
	}
	require.NotNil(t, clearedEvent)
	assert.Equal(t, 1, clearedEvent.Amount)
	assert.Equal(t, "alice", clearedEvent.PlayerID)
}

func TestGhost(t *testing.T) {
	s := newTestSession(t, "alice", "bob")
	s.SpawnKind(KindO)

	ghost := s.Ghost()
	require.NotNil(t, ghost)
	assert.Equal(t, DefaultBoardHeight-2, ghost.Y, "the ghost rests on the floor")
	assert.Equal(t, 0, s.FallingPiece().Y, "projection never moves the real piece")

	// An obstacle raises the resting row.
	s.board.PlaceBlock(10, 10, &LockedBlock{Kind: KindS, Owner: "bob"})
	ghost = s.Ghost()
	assert.Equal(t, 8, ghost.Y)
}

func TestToppedOut(t *testing.T) {
	s := newTestSession(t, "alice", "bob")

	assert.False(t, s.IsToppedOut(), "no falling piece means not topped out")

	// Block the cells directly under the spawn footprint.
	for x := 10; x < 14; x++ {
		s.board.PlaceBlock(x, 2, &LockedBlock{Kind: KindL, Owner: "bob"})
	}
	s.SpawnKind(KindI)

	assert.True(t, s.IsToppedOut())
}

func TestTickAppliesGravity(t *testing.T) {
	s := newTestSession(t, "alice", "bob")
	s.SpawnKind(KindS)

	s.Tick()
	assert.Equal(t, 1, s.FallingPiece().Y)

	s.Tick()
	assert.Equal(t, 2, s.FallingPiece().Y)
}
