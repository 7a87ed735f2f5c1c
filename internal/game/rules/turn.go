package rules

import (
	"fmt"
	"strings"
)

// Phase represents the broad phases of a chesstris turn.
type Phase int

const (
	PhasePlacing Phase = iota
	PhaseMoving
	PhaseFinished
)

var phaseNames = map[Phase]string{
	PhasePlacing:  "PLACING",
	PhaseMoving:   "MOVING",
	PhaseFinished: "FINISHED",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// TurnManager tracks the active player and the alternation between the
// tetromino-placement phase and the chess-move phase. Phase alternation is
// global to the board: one lock completes PLACING, one chess move completes
// MOVING, then the turn passes to the next non-eliminated player.
type TurnManager struct {
	phase       Phase
	turnNumber  int
	activeIndex int
	playerOrder []string
	eliminated  map[string]bool
	winner      string
}

// NewTurnManager creates a turn manager starting at turn 1 in the placing
// phase with the first listed player active.
func NewTurnManager(playerOrder []string) *TurnManager {
	order := make([]string, 0, len(playerOrder))
	for _, p := range playerOrder {
		if name := strings.TrimSpace(p); name != "" {
			order = append(order, name)
		}
	}
	return &TurnManager{
		phase:       PhasePlacing,
		turnNumber:  1,
		activeIndex: 0,
		playerOrder: order,
		eliminated:  make(map[string]bool),
	}
}

// RestoreTurnManager rebuilds a turn manager from previously captured
// state, used when replacing local state wholesale with authoritative
// remote state.
func RestoreTurnManager(playerOrder []string, eliminated []string, activePlayer string, phase Phase, turnNumber int, winner string) *TurnManager {
	tm := NewTurnManager(playerOrder)
	for _, p := range eliminated {
		tm.eliminated[p] = true
	}
	for i, p := range tm.playerOrder {
		if p == activePlayer {
			tm.activeIndex = i
			break
		}
	}
	tm.phase = phase
	if turnNumber > 0 {
		tm.turnNumber = turnNumber
	}
	tm.winner = winner
	return tm
}

// EliminatedPlayers returns the eliminated players in seating order.
func (tm *TurnManager) EliminatedPlayers() []string {
	out := make([]string, 0, len(tm.eliminated))
	for _, p := range tm.playerOrder {
		if tm.eliminated[p] {
			out = append(out, p)
		}
	}
	return out
}

// CurrentPhase returns the phase currently in progress.
func (tm *TurnManager) CurrentPhase() Phase {
	return tm.phase
}

// TurnNumber returns the current turn number (1-based).
func (tm *TurnManager) TurnNumber() int {
	return tm.turnNumber
}

// ActivePlayer returns the player who currently has the turn.
func (tm *TurnManager) ActivePlayer() string {
	if len(tm.playerOrder) == 0 {
		return ""
	}
	return tm.playerOrder[tm.activeIndex]
}

// PlayerOrder returns the seating order, including eliminated players.
func (tm *TurnManager) PlayerOrder() []string {
	return append([]string(nil), tm.playerOrder...)
}

// IsEliminated reports whether the player has been eliminated.
func (tm *TurnManager) IsEliminated(player string) bool {
	return tm.eliminated[player]
}

// ActiveCount returns the number of non-eliminated players.
func (tm *TurnManager) ActiveCount() int {
	count := 0
	for _, p := range tm.playerOrder {
		if !tm.eliminated[p] {
			count++
		}
	}
	return count
}

// Winner returns the winning player once the game is finished.
func (tm *TurnManager) Winner() string {
	return tm.winner
}

// Finished reports whether the game reached its terminal state.
func (tm *TurnManager) Finished() bool {
	return tm.phase == PhaseFinished
}

// CompletePlacement advances PLACING to MOVING for the active player.
// Returns false when the game is not in the placing phase.
func (tm *TurnManager) CompletePlacement() bool {
	if tm.phase != PhasePlacing {
		return false
	}
	tm.phase = PhaseMoving
	return true
}

// CompleteMove ends the active player's MOVING phase and rotates the turn to
// the next non-eliminated player. Returns false when the game is not in the
// moving phase.
func (tm *TurnManager) CompleteMove() bool {
	if tm.phase != PhaseMoving {
		return false
	}
	tm.advanceActivePlayer()
	return true
}

// Eliminate marks the player as eliminated. When at most one active player
// remains the game finishes with that player as winner; otherwise, if the
// eliminated player held the turn, it passes to the next active player in the
// placing phase. Returns true when the elimination finished the game.
func (tm *TurnManager) Eliminate(player string) bool {
	if tm.phase == PhaseFinished {
		return true
	}
	if tm.eliminated[player] {
		return false
	}
	found := false
	for _, p := range tm.playerOrder {
		if p == player {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	tm.eliminated[player] = true

	if tm.ActiveCount() <= 1 {
		tm.phase = PhaseFinished
		for _, p := range tm.playerOrder {
			if !tm.eliminated[p] {
				tm.winner = p
				break
			}
		}
		return true
	}

	if tm.ActivePlayer() == player {
		tm.advanceActivePlayer()
	}
	return false
}

func (tm *TurnManager) advanceActivePlayer() {
	if len(tm.playerOrder) == 0 {
		return
	}
	for i := 1; i <= len(tm.playerOrder); i++ {
		idx := (tm.activeIndex + i) % len(tm.playerOrder)
		if !tm.eliminated[tm.playerOrder[idx]] {
			tm.activeIndex = idx
			break
		}
	}
	tm.turnNumber++
	tm.phase = PhasePlacing
}
