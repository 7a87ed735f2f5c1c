package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chesstris/chesstris-server-go/internal/game/rules"
)

// BlockSnapshot is one locked block with its grid position.
type BlockSnapshot struct {
	X, Y  int
	Block LockedBlock
}

// Snapshot is a complete serializable copy of a session's state, used for
// persistence and for wholesale replacement with authoritative remote
// state. Inbound state always replaces local state entirely, never merges.
type Snapshot struct {
	GameID       string
	BoardWidth   int
	BoardHeight  int
	Blocks       []BlockSnapshot
	Players      []Player
	PlayerOrder  []string
	Eliminated   []string
	ActivePlayer string
	Phase        rules.Phase
	TurnNumber   int
	Winner       string
	Zones        []HomeZone
	Pieces       []ChessPiece
	Captured     []string // capture order, by piece ID
	Falling      *FallingPiece
	Paused       bool
	Timestamp    time.Time
}

// SerializationChecksum guards against divergent game states across
// replays or network transmission.
type SerializationChecksum struct {
	Hash      string
	Timestamp string
	Version   int
}

// Snapshot captures a deep copy of the session state.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		GameID:       s.id,
		BoardWidth:   s.board.Width(),
		BoardHeight:  s.board.Height(),
		PlayerOrder:  s.turns.PlayerOrder(),
		Eliminated:   s.turns.EliminatedPlayers(),
		ActivePlayer: s.turns.ActivePlayer(),
		Phase:        s.turns.CurrentPhase(),
		TurnNumber:   s.turns.TurnNumber(),
		Winner:       s.turns.Winner(),
		Paused:       s.paused,
		Timestamp:    time.Now(),
	}
	for y := 0; y < s.board.Height(); y++ {
		for x := 0; x < s.board.Width(); x++ {
			if cell := s.board.CellAt(x, y); cell != nil && cell.Block != nil {
				snap.Blocks = append(snap.Blocks, BlockSnapshot{X: x, Y: y, Block: *cell.Block})
			}
		}
	}
	for _, pid := range snap.PlayerOrder {
		if player, ok := s.players[pid]; ok {
			snap.Players = append(snap.Players, *player)
		}
	}
	for _, zone := range s.zones {
		snap.Zones = append(snap.Zones, *zone)
	}
	sort.Slice(snap.Zones, func(i, j int) bool { return snap.Zones[i].Owner < snap.Zones[j].Owner })
	for _, piece := range s.pieces {
		snap.Pieces = append(snap.Pieces, *piece)
	}
	sort.Slice(snap.Pieces, func(i, j int) bool { return snap.Pieces[i].ID < snap.Pieces[j].ID })
	for _, piece := range s.captured {
		snap.Captured = append(snap.Captured, piece.ID)
	}
	if s.falling != nil {
		snap.Falling = s.falling.Clone()
	}
	return snap
}

// Restore replaces the session's state wholesale with the snapshot. Any
// cached selection is discarded. Returns an error when the snapshot does
// not belong to this session or is structurally unusable.
func (s *Session) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if snap.GameID != "" && snap.GameID != s.id {
		return fmt.Errorf("snapshot for game %s does not match session %s", snap.GameID, s.id)
	}
	if len(snap.PlayerOrder) < 2 {
		return fmt.Errorf("snapshot has %d players, need at least 2", len(snap.PlayerOrder))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.boardWidth = snap.BoardWidth
	s.boardHeight = snap.BoardHeight
	s.board = NewBoard(snap.BoardWidth, snap.BoardHeight)
	for _, bs := range snap.Blocks {
		block := bs.Block
		s.board.PlaceBlock(bs.X, bs.Y, &block)
	}

	s.players = make(map[string]*Player, len(snap.Players))
	for _, p := range snap.Players {
		player := p
		s.players[player.ID] = &player
	}

	s.zones = make(map[string]*HomeZone, len(snap.Zones))
	for _, z := range snap.Zones {
		zone := z
		s.zones[zone.Owner] = &zone
		s.board.MarkZone(zone.Owner, zone.X, zone.Y, zone.Width, zone.Height)
	}

	s.pieces = make(map[string]*ChessPiece, len(snap.Pieces))
	for _, p := range snap.Pieces {
		piece := p
		s.pieces[piece.ID] = &piece
		if !piece.Captured {
			if cell := s.board.CellAt(piece.X, piece.Y); cell != nil {
				cell.Piece = s.pieces[piece.ID]
			}
		}
	}
	s.captured = s.captured[:0]
	for _, id := range snap.Captured {
		if piece, ok := s.pieces[id]; ok {
			s.captured = append(s.captured, piece)
		}
	}

	s.turns = rules.RestoreTurnManager(snap.PlayerOrder, snap.Eliminated, snap.ActivePlayer, snap.Phase, snap.TurnNumber, snap.Winner)
	if snap.Falling != nil {
		s.falling = snap.Falling.Clone()
	} else {
		s.falling = nil
	}
	s.paused = snap.Paused
	s.selected = nil
	s.selectedBy = ""
	s.legalSet = nil

	s.publishLocked(rules.NewEvent(rules.EventStateReplaced, s.id, snap.ActivePlayer))
	s.publishLocked(rules.NewEvent(rules.EventStateChanged, s.id, snap.ActivePlayer))
	return nil
}

// ComputeChecksum generates a deterministic checksum of the snapshot,
// independent of map iteration order and of the capture timestamp.
func (snap *Snapshot) ComputeChecksum() (*SerializationChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(snap.buildDeterministicRepresentation())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: snap.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:   1,
	}, nil
}

func (snap *Snapshot) buildDeterministicRepresentation() string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("GAME:%s|%dx%d|%s|%s|%d|%s|%t\n",
		snap.GameID,
		snap.BoardWidth,
		snap.BoardHeight,
		snap.Phase,
		snap.ActivePlayer,
		snap.TurnNumber,
		snap.Winner,
		snap.Paused,
	))
	buf.WriteString("PLAYER_ORDER:")
	buf.WriteString(strings.Join(snap.PlayerOrder, ","))
	buf.WriteString("\n")
	buf.WriteString("ELIMINATED:")
	buf.WriteString(strings.Join(snap.Eliminated, ","))
	buf.WriteString("\n")

	players := append([]Player(nil), snap.Players...)
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	for _, p := range players {
		buf.WriteString(fmt.Sprintf("PLAYER:%s|%d|%d|%d|%d|%t\n",
			p.ID, p.Resources, p.Score, p.Level, p.Lines, p.Eliminated))
	}

	blocks := append([]BlockSnapshot(nil), snap.Blocks...)
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Y != blocks[j].Y {
			return blocks[i].Y < blocks[j].Y
		}
		return blocks[i].X < blocks[j].X
	})
	for _, b := range blocks {
		buf.WriteString(fmt.Sprintf("BLOCK:%d,%d|%s|%s\n", b.X, b.Y, b.Block.Kind, b.Block.Owner))
	}

	zones := append([]HomeZone(nil), snap.Zones...)
	sort.Slice(zones, func(i, j int) bool { return zones[i].Owner < zones[j].Owner })
	for _, z := range zones {
		buf.WriteString(fmt.Sprintf("ZONE:%s|%d,%d|%dx%d|%s|%s\n",
			z.Owner, z.X, z.Y, z.Width, z.Height, z.Orientation, z.KingID))
	}

	pieces := append([]ChessPiece(nil), snap.Pieces...)
	sort.Slice(pieces, func(i, j int) bool { return pieces[i].ID < pieces[j].ID })
	for _, p := range pieces {
		buf.WriteString(fmt.Sprintf("PIECE:%s|%s|%s|%d,%d|%t|%t\n",
			p.ID, p.Kind, p.Owner, p.X, p.Y, p.Moved, p.Captured))
	}

	buf.WriteString("CAPTURED:")
	buf.WriteString(strings.Join(snap.Captured, ","))
	buf.WriteString("\n")

	if snap.Falling != nil {
		buf.WriteString(fmt.Sprintf("FALLING:%s|%d,%d|%d|%s\n",
			snap.Falling.Kind, snap.Falling.X, snap.Falling.Y, snap.Falling.Rotation, snap.Falling.Owner))
	}
	return buf.String()
}

// SerializeToBytes serializes the snapshot using gob encoding.
func (snap *Snapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromBytes decodes a snapshot produced by SerializeToBytes.
func DeserializeFromBytes(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// ValidateSerializationRoundtrip verifies a snapshot survives a
// serialize/deserialize cycle without data loss, by comparing checksums.
func ValidateSerializationRoundtrip(snap *Snapshot) error {
	original, err := snap.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}
	data, err := snap.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DeserializeFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}
	roundtrip, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute roundtrip checksum: %w", err)
	}
	if original.Hash != roundtrip.Hash {
		return fmt.Errorf("checksum mismatch: original=%s roundtrip=%s", original.Hash, roundtrip.Hash)
	}
	return nil
}
