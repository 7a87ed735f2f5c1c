// Package game implements the chesstris rules engine: the falling-piece
// subsystem, the chess subsystem, turn orchestration, and the score and
// resource ledger, all scoped to explicit session instances.
package game

import "fmt"

// Board defaults. Home zones are 8x2 rectangles on each edge, so the board
// must be large enough to hold one per seated player.
const (
	DefaultBoardWidth  = 24
	DefaultBoardHeight = 24
	MinBoardSize       = 12
)

// Ledger bounds.
const (
	MaxResources     = 9999
	MaxResourceGain  = 20 // per-call cap on local-player resource increases
	MaxLinesPerLock  = 4
	MaxPointsPerLine = 1200 // highest table entry, used for the delta clamp
	LinesPerLevel    = 10
)

// TetrominoKind identifies one of the seven canonical falling-piece shapes.
type TetrominoKind int

const (
	KindI TetrominoKind = iota
	KindO
	KindT
	KindS
	KindZ
	KindJ
	KindL
)

var tetrominoNames = map[TetrominoKind]string{
	KindI: "I",
	KindO: "O",
	KindT: "T",
	KindS: "S",
	KindZ: "Z",
	KindJ: "J",
	KindL: "L",
}

func (k TetrominoKind) String() string {
	if name, ok := tetrominoNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND_%d", int(k))
}

// Valid reports whether the kind is one of the seven canonical shapes.
func (k TetrominoKind) Valid() bool {
	_, ok := tetrominoNames[k]
	return ok
}

// MoveDirection is a lateral or downward falling-piece move.
type MoveDirection int

const (
	MoveLeft MoveDirection = iota
	MoveRight
	MoveDown
)

func (d MoveDirection) String() string {
	switch d {
	case MoveLeft:
		return "LEFT"
	case MoveRight:
		return "RIGHT"
	case MoveDown:
		return "DOWN"
	default:
		return fmt.Sprintf("MOVE_%d", int(d))
	}
}

// offset returns the signed cell offset for the direction.
func (d MoveDirection) offset() (int, int) {
	switch d {
	case MoveLeft:
		return -1, 0
	case MoveRight:
		return 1, 0
	case MoveDown:
		return 0, 1
	default:
		return 0, 0
	}
}

// RotateDirection selects clockwise or counterclockwise rotation.
type RotateDirection int

const (
	RotateCW RotateDirection = iota
	RotateCCW
)

func (d RotateDirection) String() string {
	if d == RotateCCW {
		return "CCW"
	}
	return "CW"
}

// Sponsor is an opaque attachment supplied by an external bidding
// collaborator. The engine carries it through to locked blocks unchanged.
type Sponsor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChessKind identifies a chess piece type.
type ChessKind int

const (
	King ChessKind = iota
	Queen
	Rook
	Bishop
	Knight
	Pawn
)

var chessKindNames = map[ChessKind]string{
	King:   "KING",
	Queen:  "QUEEN",
	Rook:   "ROOK",
	Bishop: "BISHOP",
	Knight: "KNIGHT",
	Pawn:   "PAWN",
}

func (k ChessKind) String() string {
	if name, ok := chessKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CHESS_KIND_%d", int(k))
}

// ChessPiece is a single chess piece. Captured pieces keep their identity
// and are flagged rather than deleted.
type ChessPiece struct {
	ID       string
	Kind     ChessKind
	Owner    string
	X, Y     int
	Moved    bool
	Captured bool
}

// Orientation is the board edge a home zone is anchored to. It determines
// the zone's rank direction and the forward direction of its pawns.
type Orientation int

const (
	OrientBottom Orientation = iota
	OrientTop
	OrientLeft
	OrientRight
)

func (o Orientation) String() string {
	switch o {
	case OrientBottom:
		return "BOTTOM"
	case OrientTop:
		return "TOP"
	case OrientLeft:
		return "LEFT"
	case OrientRight:
		return "RIGHT"
	default:
		return fmt.Sprintf("ORIENT_%d", int(o))
	}
}

// Forward returns the pawn forward direction for zones with this
// orientation: away from the anchoring edge, toward the board interior.
func (o Orientation) Forward() (int, int) {
	switch o {
	case OrientBottom:
		return 0, -1
	case OrientTop:
		return 0, 1
	case OrientLeft:
		return 1, 0
	case OrientRight:
		return -1, 0
	default:
		return 0, 0
	}
}

// HomeZone is a player's reserved rectangle. The owner's king must occupy a
// cell inside it; absence triggers elimination on the next check.
type HomeZone struct {
	Owner       string
	X, Y        int
	Width       int
	Height      int
	Orientation Orientation
	KingID      string
}

// Contains reports whether (x, y) lies inside the zone rectangle.
func (z *HomeZone) Contains(x, y int) bool {
	return x >= z.X && x < z.X+z.Width && y >= z.Y && y < z.Y+z.Height
}

// Player is a participant's identity and ledger state.
type Player struct {
	ID         string
	Name       string
	Resources  int
	Score      int
	Level      int
	Lines      int // cumulative rows cleared
	Eliminated bool
}
