package game

import (
	"go.uber.org/zap"

	"github.com/chesstris/chesstris-server-go/internal/game/rules"
)

// FallingPiece is the single active tetromino on a board. It exists only
// between spawn and lock; its blocks are not written into the grid until
// the piece locks.
type FallingPiece struct {
	Kind     TetrominoKind
	X, Y     int
	Rotation int // 0-3
	Offsets  [][2]int
	Sponsor  *Sponsor
	Owner    string
}

// Clone returns a deep copy of the piece.
func (p *FallingPiece) Clone() *FallingPiece {
	clone := *p
	clone.Offsets = make([][2]int, len(p.Offsets))
	copy(clone.Offsets, p.Offsets)
	return &clone
}

// Blocks returns the absolute cell coordinates of the piece's four blocks.
func (p *FallingPiece) Blocks() [][2]int {
	blocks := make([][2]int, len(p.Offsets))
	for i, off := range p.Offsets {
		blocks[i] = [2]int{p.X + off[0], p.Y + off[1]}
	}
	return blocks
}

// baseShapes holds the block offsets for each kind at rotation 0, expressed
// inside the kind's bounding box (4x4 for I, 2x2 for O, 3x3 otherwise).
var baseShapes = map[TetrominoKind][][2]int{
	KindI: {{0, 1}, {1, 1}, {2, 1}, {3, 1}},
	KindO: {{0, 0}, {1, 0}, {0, 1}, {1, 1}},
	KindT: {{1, 0}, {0, 1}, {1, 1}, {2, 1}},
	KindS: {{1, 0}, {2, 0}, {0, 1}, {1, 1}},
	KindZ: {{0, 0}, {1, 0}, {1, 1}, {2, 1}},
	KindJ: {{0, 0}, {0, 1}, {1, 1}, {2, 1}},
	KindL: {{2, 0}, {0, 1}, {1, 1}, {2, 1}},
}

// blockColors are the conventional display colors carried on locked blocks.
var blockColors = map[TetrominoKind]string{
	KindI: "cyan",
	KindO: "yellow",
	KindT: "purple",
	KindS: "green",
	KindZ: "red",
	KindJ: "blue",
	KindL: "orange",
}

// wallKicks are the alternate offsets tried, in order, when a rotation is
// invalid in place. The first offset that validates is applied.
var wallKicks = [][2]int{{1, 0}, {-1, 0}, {0, -1}, {2, 0}, {-2, 0}}

func boundingBox(kind TetrominoKind) int {
	switch kind {
	case KindI:
		return 4
	case KindO:
		return 2
	default:
		return 3
	}
}

// rotatedOffsets computes the piece's offsets after a 90° rotation inside
// its bounding box. The O kind rotates onto itself.
func rotatedOffsets(kind TetrominoKind, offsets [][2]int, dir RotateDirection) [][2]int {
	n := boundingBox(kind)
	rotated := make([][2]int, len(offsets))
	for i, off := range offsets {
		if dir == RotateCW {
			rotated[i] = [2]int{n - 1 - off[1], off[0]}
		} else {
			rotated[i] = [2]int{off[1], n - 1 - off[0]}
		}
	}
	return rotated
}

// canPlace tests every block of the piece, shifted by (dx, dy) and using the
// provided offsets, for in-bounds and non-collision against the board.
func (s *Session) canPlace(piece *FallingPiece, dx, dy int, offsets [][2]int) bool {
	for _, off := range offsets {
		x := piece.X + dx + off[0]
		y := piece.Y + dy + off[1]
		if s.board.Occupied(x, y) {
			return false
		}
	}
	return true
}

// spawnOrigin is the origin new pieces appear at: the spawn column is
// centered, and the spawn row is the first whose 4x4 spawn box clears
// every home zone. A piece must never materialize on top of a player's
// chess pieces.
func (s *Session) spawnOrigin() (int, int) {
	x := (s.board.Width() - 4) / 2
	for y := 0; y <= s.board.Height()-4; y++ {
		if s.spawnBoxClear(x, y) {
			return x, y
		}
	}
	return x, 0
}

func (s *Session) spawnBoxClear(x, y int) bool {
	for dy := 0; dy < 4; dy++ {
		for dx := 0; dx < 4; dx++ {
			if cell := s.board.CellAt(x+dx, y+dy); cell != nil && cell.ZoneOwner != "" {
				return false
			}
		}
	}
	return true
}

// Spawn replaces any existing falling piece with a new one of a uniformly
// random kind. Replacing an unlocked piece is an administrative reset, not
// an error. Returns the spawned piece.
func (s *Session) Spawn() *FallingPiece {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawnLocked(TetrominoKind(s.rng.Intn(len(baseShapes))))
}

// SpawnKind spawns a falling piece of the requested kind. Invalid kinds
// fall back to a random one.
func (s *Session) SpawnKind(kind TetrominoKind) *FallingPiece {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !kind.Valid() {
		kind = TetrominoKind(s.rng.Intn(len(baseShapes)))
	}
	return s.spawnLocked(kind)
}

func (s *Session) spawnLocked(kind TetrominoKind) *FallingPiece {
	s.healIfNeeded()
	x, y := s.spawnOrigin()
	piece := &FallingPiece{
		Kind:    kind,
		X:       x,
		Y:       y,
		Offsets: append([][2]int(nil), baseShapes[kind]...),
		Owner:   s.turns.ActivePlayer(),
	}
	if s.sponsors != nil {
		if sponsor, ok := s.sponsors.NextSponsor(s.id, piece.Owner); ok {
			piece.Sponsor = &sponsor
		}
	}
	s.falling = piece
	s.logger.Debug("piece spawned",
		zap.String("game_id", s.id),
		zap.String("kind", kind.String()),
		zap.String("owner", piece.Owner),
	)
	s.publishLocked(rules.NewEvent(rules.EventPieceSpawned, s.id, piece.Owner))
	return piece
}

// MoveFalling applies a single-cell move to the falling piece. A failed
// down-move locks the piece in place; lateral failures leave all state
// untouched. Returns true when the position changed.
func (s *Session) MoveFalling(dir MoveDirection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveFallingLocked(dir)
}

func (s *Session) moveFallingLocked(dir MoveDirection) bool {
	if s.paused || s.falling == nil || s.turns.CurrentPhase() != rules.PhasePlacing {
		return false
	}
	dx, dy := dir.offset()
	if s.canPlace(s.falling, dx, dy, s.falling.Offsets) {
		s.falling.X += dx
		s.falling.Y += dy
		s.publishLocked(rules.NewEvent(rules.EventStateChanged, s.id, s.falling.Owner))
		return true
	}
	if dir == MoveDown {
		s.lockLocked()
	}
	return false
}

// RotateFalling rotates the falling piece 90°, trying wall-kick offsets in
// strict order when the in-place rotation collides. The O kind always
// succeeds without changing its layout. Returns true on success.
func (s *Session) RotateFalling(dir RotateDirection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused || s.falling == nil || s.turns.CurrentPhase() != rules.PhasePlacing {
		return false
	}
	if s.falling.Kind == KindO {
		return true
	}

	rotated := rotatedOffsets(s.falling.Kind, s.falling.Offsets, dir)
	kicks := append([][2]int{{0, 0}}, wallKicks...)
	for _, kick := range kicks {
		if s.canPlace(s.falling, kick[0], kick[1], rotated) {
			s.falling.X += kick[0]
			s.falling.Y += kick[1]
			s.falling.Offsets = rotated
			if dir == RotateCW {
				s.falling.Rotation = (s.falling.Rotation + 1) % 4
			} else {
				s.falling.Rotation = (s.falling.Rotation + 3) % 4
			}
			s.publishLocked(rules.NewEvent(rules.EventStateChanged, s.id, s.falling.Owner))
			return true
		}
	}
	return false
}

// HardDrop moves the falling piece down until blocked, then locks it.
// Returns the drop distance in cells.
func (s *Session) HardDrop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused || s.falling == nil || s.turns.CurrentPhase() != rules.PhasePlacing {
		return 0
	}
	distance := 0
	for s.canPlace(s.falling, 0, 1, s.falling.Offsets) {
		s.falling.Y++
		distance++
	}
	s.lockLocked()
	return distance
}

// Ghost returns the falling piece projected to its resting y: the preview
// of where it would land. The board is never mutated. Returns nil when no
// piece is falling.
func (s *Session) Ghost() *FallingPiece {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.falling == nil {
		return nil
	}
	ghost := s.falling.Clone()
	for s.canPlace(ghost, 0, 1, ghost.Offsets) {
		ghost.Y++
	}
	return ghost
}

// IsToppedOut reports whether the falling piece sits at the spawn row and
// cannot move down, signalling the board cannot continue.
func (s *Session) IsToppedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.falling == nil {
		return false
	}
	_, spawnY := s.spawnOrigin()
	return s.falling.Y == spawnY && !s.canPlace(s.falling, 0, 1, s.falling.Offsets)
}

// lockLocked commits the falling piece's blocks into the grid, sweeps full
// rows, scores the clear for the piece's owner, completes the placing
// phase, and spawns the next piece.
func (s *Session) lockLocked() {
	piece := s.falling
	if piece == nil {
		return
	}
	owner := piece.Owner
	for _, block := range piece.Blocks() {
		s.board.PlaceBlock(block[0], block[1], &LockedBlock{
			Kind:    piece.Kind,
			Color:   blockColors[piece.Kind],
			Sponsor: piece.Sponsor,
			Owner:   owner,
		})
	}
	cleared := s.board.ClearFullRows()
	s.falling = nil

	s.logger.Debug("piece locked",
		zap.String("game_id", s.id),
		zap.String("owner", owner),
		zap.Int("rows_cleared", cleared),
	)
	s.publishLocked(rules.NewEventWithAmount(rules.EventPieceLocked, s.id, owner, cleared))
	if cleared > 0 {
		s.publishLocked(rules.NewEventWithAmount(rules.EventRowsCleared, s.id, owner, cleared))
	}
	s.updateScoreLocked(owner, cleared)

	if s.turns.CompletePlacement() {
		s.publishLocked(rules.NewEvent(rules.EventPhaseChanged, s.id, s.turns.ActivePlayer()))
	}
	s.spawnLocked(TetrominoKind(s.rng.Intn(len(baseShapes))))

	_, spawnY := s.spawnOrigin()
	if s.falling != nil && s.falling.Y == spawnY && !s.canPlace(s.falling, 0, 1, s.falling.Offsets) {
		s.publishLocked(rules.NewEvent(rules.EventToppedOut, s.id, s.falling.Owner))
	}
	s.publishLocked(rules.NewEvent(rules.EventStateChanged, s.id, owner))
}

// Tick is the gravity callback: one down-move attempt. It is a no-op while
// paused, outside the placing phase, or after the game finished.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused || s.turns.Finished() {
		return
	}
	s.moveFallingLocked(MoveDown)
}
