package game

// LockedBlock is a tetromino block committed permanently into the grid.
type LockedBlock struct {
	Kind    TetrominoKind
	Color   string
	Sponsor *Sponsor
	Owner   string
}

// Cell is a single grid position. At most one active occupant exists per
// cell: a locked block or a chess piece. Home-zone membership is tracked
// alongside the occupant.
type Cell struct {
	X, Y      int
	Block     *LockedBlock
	Piece     *ChessPiece
	ZoneOwner string // empty when the cell is not part of a home zone
}

// Occupied reports whether the cell holds a locked block or a chess piece.
func (c *Cell) Occupied() bool {
	return c.Block != nil || c.Piece != nil
}

// Board is the persistent dense grid shared by the tetromino and chess
// subsystems. Dimensions are fixed at game start.
type Board struct {
	width  int
	height int
	cells  [][]Cell // indexed cells[y][x]
}

// NewBoard creates an empty board with the given dimensions. Dimensions
// below the minimum playable size fall back to defaults.
func NewBoard(width, height int) *Board {
	if width < MinBoardSize {
		width = DefaultBoardWidth
	}
	if height < MinBoardSize {
		height = DefaultBoardHeight
	}
	cells := make([][]Cell, height)
	for y := range cells {
		cells[y] = make([]Cell, width)
		for x := range cells[y] {
			cells[y][x] = Cell{X: x, Y: y}
		}
	}
	return &Board{width: width, height: height, cells: cells}
}

// Width returns the board width in cells.
func (b *Board) Width() int {
	return b.width
}

// Height returns the board height in cells.
func (b *Board) Height() int {
	return b.height
}

// InBounds reports whether (x, y) addresses a cell on the board.
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// CellAt returns the cell at (x, y), or nil when out of bounds.
func (b *Board) CellAt(x, y int) *Cell {
	if !b.InBounds(x, y) {
		return nil
	}
	return &b.cells[y][x]
}

// Occupied reports whether (x, y) holds a locked block or a chess piece.
// Out-of-bounds coordinates count as occupied for collision purposes.
func (b *Board) Occupied(x, y int) bool {
	cell := b.CellAt(x, y)
	if cell == nil {
		return true
	}
	return cell.Occupied()
}

// PlaceBlock commits a locked block into the cell at (x, y).
// Returns false when the coordinate is out of bounds.
func (b *Board) PlaceBlock(x, y int, block *LockedBlock) bool {
	cell := b.CellAt(x, y)
	if cell == nil {
		return false
	}
	cell.Block = block
	return true
}

// ClearFullRows sweeps the grid for rows whose every cell holds a locked
// block and clears those blocks, returning the number of rows cleared.
// Blocks are removed in place: rows above do not shift, because chess
// pieces share the coordinate space and must keep their positions.
func (b *Board) ClearFullRows() int {
	cleared := 0
	for y := 0; y < b.height; y++ {
		full := true
		for x := 0; x < b.width; x++ {
			if b.cells[y][x].Block == nil {
				full = false
				break
			}
		}
		if !full {
			continue
		}
		for x := 0; x < b.width; x++ {
			b.cells[y][x].Block = nil
		}
		cleared++
	}
	return cleared
}

// MarkZone stamps home-zone ownership on the rectangle anchored at
// (x, y) with the given dimensions. Cells outside the board are skipped.
func (b *Board) MarkZone(owner string, x, y, width, height int) {
	for dy := 0; dy < height; dy++ {
		for dx := 0; dx < width; dx++ {
			if cell := b.CellAt(x+dx, y+dy); cell != nil {
				cell.ZoneOwner = owner
			}
		}
	}
}

// ZoneClear reports whether the rectangle overlaps no existing home zone
// and lies fully on the board.
func (b *Board) ZoneClear(x, y, width, height int) bool {
	for dy := 0; dy < height; dy++ {
		for dx := 0; dx < width; dx++ {
			cell := b.CellAt(x+dx, y+dy)
			if cell == nil || cell.ZoneOwner != "" {
				return false
			}
		}
	}
	return true
}

// CellView is a read-only projection of a cell for external consumers.
type CellView struct {
	X         int          `json:"x"`
	Y         int          `json:"y"`
	Block     *LockedBlock `json:"block,omitempty"`
	PieceID   string       `json:"piece_id,omitempty"`
	ZoneOwner string       `json:"zone_owner,omitempty"`
}

// Snapshot returns a read-only view of every occupied or zone-marked cell.
// Empty cells outside home zones are omitted to keep the view small.
func (b *Board) Snapshot() []CellView {
	views := make([]CellView, 0, 64)
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			cell := &b.cells[y][x]
			if cell.Block == nil && cell.Piece == nil && cell.ZoneOwner == "" {
				continue
			}
			view := CellView{X: x, Y: y, Block: cell.Block, ZoneOwner: cell.ZoneOwner}
			if cell.Piece != nil {
				view.PieceID = cell.Piece.ID
			}
			views = append(views, view)
		}
	}
	return views
}
