package game

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chesstris/chesstris-server-go/internal/game/rules"
)

// zoneRect is a candidate home-zone placement.
type zoneRect struct {
	x, y          int
	width, height int
	orientation   Orientation
}

const (
	zoneLong  = 8 // ranks per zone
	zoneShort = 2 // rows per zone
)

// seatAnchor returns the canonical placement for the first four seats:
// bottom, top, left, right, centered along their edge.
func seatAnchor(seat, boardWidth, boardHeight int) (zoneRect, bool) {
	switch seat {
	case 0:
		return zoneRect{(boardWidth - zoneLong) / 2, boardHeight - zoneShort, zoneLong, zoneShort, OrientBottom}, true
	case 1:
		return zoneRect{(boardWidth - zoneLong) / 2, 0, zoneLong, zoneShort, OrientTop}, true
	case 2:
		return zoneRect{0, (boardHeight - zoneLong) / 2, zoneShort, zoneLong, OrientLeft}, true
	case 3:
		return zoneRect{boardWidth - zoneShort, (boardHeight - zoneLong) / 2, zoneShort, zoneLong, OrientRight}, true
	default:
		return zoneRect{}, false
	}
}

// extraSeatCandidates is the fixed list of placements tried, in order, for
// seats beyond the first four, before falling back to random placement.
func extraSeatCandidates(boardWidth, boardHeight int) []zoneRect {
	return []zoneRect{
		{0, boardHeight - zoneShort, zoneLong, zoneShort, OrientBottom},
		{boardWidth - zoneLong, boardHeight - zoneShort, zoneLong, zoneShort, OrientBottom},
		{0, 0, zoneLong, zoneShort, OrientTop},
		{boardWidth - zoneLong, 0, zoneLong, zoneShort, OrientTop},
		{0, 0, zoneShort, zoneLong, OrientLeft},
		{boardWidth - zoneShort, boardHeight - zoneLong, zoneShort, zoneLong, OrientRight},
	}
}

// backRankOrder is the standard arrangement along a zone's outer rank.
var backRankOrder = []ChessKind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// InitHomeZone creates the player's 8x2 home zone for the given seat and
// populates it with the standard piece set. The king's identity is recorded
// on the zone. Returns an error when no non-overlapping placement exists.
func (s *Session) InitHomeZone(playerID string, seatIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healIfNeeded()

	if _, ok := s.players[playerID]; !ok {
		return fmt.Errorf("player %s not part of game %s", playerID, s.id)
	}
	if _, ok := s.zones[playerID]; ok {
		return fmt.Errorf("player %s already has a home zone", playerID)
	}

	rect, err := s.placeZoneLocked(seatIndex)
	if err != nil {
		return err
	}

	zone := &HomeZone{
		Owner:       playerID,
		X:           rect.x,
		Y:           rect.y,
		Width:       rect.width,
		Height:      rect.height,
		Orientation: rect.orientation,
	}
	s.board.MarkZone(playerID, rect.x, rect.y, rect.width, rect.height)
	s.zones[playerID] = zone

	backX, backY, pawnX, pawnY, stepX, stepY := zoneLayout(rect)
	for i, kind := range backRankOrder {
		piece := s.placePieceLocked(playerID, kind, backX+i*stepX, backY+i*stepY)
		if kind == King && zone.KingID == "" {
			zone.KingID = piece.ID
		}
	}
	for i := 0; i < zoneLong; i++ {
		s.placePieceLocked(playerID, Pawn, pawnX+i*stepX, pawnY+i*stepY)
	}

	s.logger.Info("home zone initialized",
		zap.String("game_id", s.id),
		zap.String("player", playerID),
		zap.Int("seat", seatIndex),
		zap.String("orientation", rect.orientation.String()),
	)
	return nil
}

// zoneLayout derives the back-rank and pawn-rank start cells and the step
// between files for a zone rectangle. The back rank hugs the board edge;
// pawns stand on the interior row.
func zoneLayout(rect zoneRect) (backX, backY, pawnX, pawnY, stepX, stepY int) {
	switch rect.orientation {
	case OrientBottom:
		return rect.x, rect.y + 1, rect.x, rect.y, 1, 0
	case OrientTop:
		return rect.x, rect.y, rect.x, rect.y + 1, 1, 0
	case OrientLeft:
		return rect.x, rect.y, rect.x + 1, rect.y, 0, 1
	default: // OrientRight
		return rect.x + 1, rect.y, rect.x, rect.y, 0, 1
	}
}

func (s *Session) placeZoneLocked(seatIndex int) (zoneRect, error) {
	if rect, ok := seatAnchor(seatIndex, s.board.Width(), s.board.Height()); ok {
		if !s.board.ZoneClear(rect.x, rect.y, rect.width, rect.height) {
			return zoneRect{}, fmt.Errorf("seat %d zone overlaps an existing zone", seatIndex)
		}
		return rect, nil
	}

	for _, rect := range extraSeatCandidates(s.board.Width(), s.board.Height()) {
		if s.board.ZoneClear(rect.x, rect.y, rect.width, rect.height) {
			return rect, nil
		}
	}

	// Random non-overlapping fallback for crowded boards.
	orientations := []Orientation{OrientBottom, OrientTop, OrientLeft, OrientRight}
	for attempt := 0; attempt < 128; attempt++ {
		orient := orientations[s.rng.Intn(len(orientations))]
		width, height := zoneLong, zoneShort
		if orient == OrientLeft || orient == OrientRight {
			width, height = zoneShort, zoneLong
		}
		x := s.rng.Intn(s.board.Width() - width + 1)
		y := s.rng.Intn(s.board.Height() - height + 1)
		if s.board.ZoneClear(x, y, width, height) {
			return zoneRect{x, y, width, height, orient}, nil
		}
	}
	return zoneRect{}, fmt.Errorf("no free home-zone placement for seat %d", seatIndex)
}

func (s *Session) placePieceLocked(owner string, kind ChessKind, x, y int) *ChessPiece {
	piece := &ChessPiece{
		ID:    uuid.NewString(),
		Kind:  kind,
		Owner: owner,
		X:     x,
		Y:     y,
	}
	s.pieces[piece.ID] = piece
	if cell := s.board.CellAt(x, y); cell != nil {
		cell.Piece = piece
	}
	return piece
}

// Select picks the piece at (x, y) for the acting player and caches its
// legal destination set. Fails when the cell is out of bounds, empty, or
// holds a piece the acting player does not own.
func (s *Session) Select(x, y int, actingPlayer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healIfNeeded()

	if s.paused || s.turns.Finished() {
		return false
	}
	cell := s.board.CellAt(x, y)
	if cell == nil || cell.Piece == nil || cell.Piece.Owner != actingPlayer {
		return false
	}

	s.selected = cell.Piece
	s.selectedBy = actingPlayer
	s.legalSet = make(map[[2]int]bool)
	for _, dest := range s.legalMovesLocked(cell.Piece) {
		s.legalSet[dest] = true
	}
	s.publishLocked(rules.NewEvent(rules.EventPieceSelected, s.id, actingPlayer))
	return true
}

// LegalMoves returns the legal destination cells for the piece. King:
// the 8 adjacent in-bounds cells not occupied by the mover's own pieces.
// Pawn: one forward cell when empty, two forward diagonals capture-only.
// Every other kind currently falls back to king-like movement; full
// sliding and knight rules are not yet specified.
func (s *Session) LegalMoves(piece *ChessPiece) [][2]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.legalMovesLocked(piece)
}

func (s *Session) legalMovesLocked(piece *ChessPiece) [][2]int {
	if piece == nil || piece.Captured {
		return nil
	}
	if piece.Kind == Pawn {
		return s.pawnMovesLocked(piece)
	}
	return s.kingLikeMovesLocked(piece)
}

func (s *Session) kingLikeMovesLocked(piece *ChessPiece) [][2]int {
	moves := make([][2]int, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			x, y := piece.X+dx, piece.Y+dy
			cell := s.board.CellAt(x, y)
			if cell == nil {
				continue
			}
			if cell.Piece != nil && cell.Piece.Owner == piece.Owner {
				continue
			}
			if cell.Block != nil {
				continue
			}
			moves = append(moves, [2]int{x, y})
		}
	}
	return moves
}

func (s *Session) pawnMovesLocked(piece *ChessPiece) [][2]int {
	fx, fy := s.pawnForwardLocked(piece)
	moves := make([][2]int, 0, 3)

	// One forward cell, only when empty.
	if cell := s.board.CellAt(piece.X+fx, piece.Y+fy); cell != nil && !cell.Occupied() {
		moves = append(moves, [2]int{piece.X + fx, piece.Y + fy})
	}

	// Forward diagonals, capture-only.
	for _, side := range [][2]int{{fy, fx}, {-fy, -fx}} {
		x := piece.X + fx + side[0]
		y := piece.Y + fy + side[1]
		cell := s.board.CellAt(x, y)
		if cell != nil && cell.Piece != nil && cell.Piece.Owner != piece.Owner {
			moves = append(moves, [2]int{x, y})
		}
	}
	return moves
}

// pawnForwardLocked is the pawn's forward direction: away from the owner's
// home-zone edge, toward the board interior.
func (s *Session) pawnForwardLocked(piece *ChessPiece) (int, int) {
	if zone, ok := s.zones[piece.Owner]; ok {
		return zone.Orientation.Forward()
	}
	return 0, -1
}

// MoveSelected moves the currently selected piece to (x, y). Fails without
// mutation when nothing is selected, the destination is not in the cached
// legal set, or it is not the selecting player's chess phase. A successful
// move captures any opposing occupant, re-runs the home-zone king check for
// every player, clears the selection, and completes the moving phase.
func (s *Session) MoveSelected(x, y int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healIfNeeded()

	if s.paused || s.turns.Finished() {
		return false
	}
	if s.selected == nil || s.selected.Captured {
		return false
	}
	if s.turns.CurrentPhase() != rules.PhaseMoving || s.selectedBy != s.turns.ActivePlayer() {
		return false
	}
	if !s.legalSet[[2]int{x, y}] {
		return false
	}

	piece := s.selected
	dest := s.board.CellAt(x, y)
	if dest == nil {
		return false
	}
	if dest.Piece != nil && dest.Piece.Owner != piece.Owner {
		s.captureLocked(dest.Piece, piece.Owner)
	}

	if src := s.board.CellAt(piece.X, piece.Y); src != nil && src.Piece == piece {
		src.Piece = nil
	}
	dest.Piece = piece
	piece.X, piece.Y = x, y
	piece.Moved = true

	s.checkHomeZonesLocked()

	s.selected = nil
	s.selectedBy = ""
	s.legalSet = nil

	s.publishLocked(rules.NewEvent(rules.EventPieceMoved, s.id, piece.Owner))
	if s.turns.CompleteMove() {
		s.publishLocked(rules.NewEvent(rules.EventPhaseChanged, s.id, s.turns.ActivePlayer()))
		if s.falling != nil {
			s.falling.Owner = s.turns.ActivePlayer()
		}
	}
	s.publishLocked(rules.NewEvent(rules.EventStateChanged, s.id, piece.Owner))
	return true
}

// Selected returns the currently selected piece and its cached legal
// destinations, for read-only consumers.
func (s *Session) Selected() (*ChessPiece, [][2]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected == nil {
		return nil, nil
	}
	dests := make([][2]int, 0, len(s.legalSet))
	for dest := range s.legalSet {
		dests = append(dests, dest)
	}
	return s.selected, dests
}

// CapturedPieces returns the captured list in capture order.
func (s *Session) CapturedPieces() []*ChessPiece {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ChessPiece(nil), s.captured...)
}

func (s *Session) captureLocked(victim *ChessPiece, byPlayer string) {
	victim.Captured = true
	if cell := s.board.CellAt(victim.X, victim.Y); cell != nil && cell.Piece == victim {
		cell.Piece = nil
	}
	s.captured = append(s.captured, victim)

	s.logger.Info("piece captured",
		zap.String("game_id", s.id),
		zap.String("kind", victim.Kind.String()),
		zap.String("owner", victim.Owner),
		zap.String("by", byPlayer),
	)
	evt := rules.NewEvent(rules.EventPieceCaptured, s.id, victim.Owner)
	evt.TargetID = victim.ID
	evt.Data = victim.Kind.String()
	s.publishLocked(evt)

	if victim.Kind == King {
		s.eliminateLocked(victim.Owner)
	}
}

// checkHomeZonesLocked enforces the king-occupancy invariant: every
// non-eliminated player's king must stand inside its own home zone.
func (s *Session) checkHomeZonesLocked() {
	for owner, zone := range s.zones {
		if s.turns.IsEliminated(owner) {
			continue
		}
		king, ok := s.pieces[zone.KingID]
		if !ok || king.Captured || !zone.Contains(king.X, king.Y) {
			s.eliminateLocked(owner)
		}
	}
}

func (s *Session) eliminateLocked(playerID string) {
	if s.turns.IsEliminated(playerID) || s.turns.Finished() {
		return
	}
	if player, ok := s.players[playerID]; ok {
		player.Eliminated = true
	}
	finished := s.turns.Eliminate(playerID)

	s.logger.Info("player eliminated",
		zap.String("game_id", s.id),
		zap.String("player", playerID),
	)
	s.publishLocked(rules.NewEvent(rules.EventPlayerEliminated, s.id, playerID))
	s.notifier.PlayerEliminated(s.id, playerID)

	if finished {
		winner := s.turns.Winner()
		s.publishLocked(rules.NewEvent(rules.EventGameFinished, s.id, winner))
		s.notifier.GameFinished(s.id, winner)
	}
}
