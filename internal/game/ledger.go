package game

import (
	"go.uber.org/zap"

	"github.com/chesstris/chesstris-server-go/internal/game/rules"
)

// linePoints is the base score awarded per simultaneous row clear, before
// the level multiplier.
var linePoints = map[int]int{1: 40, 2: 100, 3: 300, 4: 1200}

// UpdateScore awards points to the player for the given number of cleared
// rows. Out-of-range input is clamped to 0. Points are the table value for
// the clear count times the player's level; the per-call delta is capped at
// 1200 x level as a local sanity guard. Cumulative lines drive the level:
// it increments once lines reach level x 10 and never exceeds
// lines/10 + 1. Returns the points awarded.
func (s *Session) UpdateScore(playerID string, linesCleared int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateScoreLocked(playerID, linesCleared)
}

func (s *Session) updateScoreLocked(playerID string, linesCleared int) int {
	player, ok := s.players[playerID]
	if !ok {
		return 0
	}
	if linesCleared < 0 || linesCleared > MaxLinesPerLock {
		linesCleared = 0
	}
	if player.Level < 1 {
		player.Level = 1
	}

	points := linePoints[linesCleared] * player.Level
	if limit := MaxPointsPerLine * player.Level; points > limit {
		points = limit
	}
	if points == 0 && linesCleared == 0 {
		return 0
	}

	player.Score += points
	player.Lines += linesCleared

	levelBefore := player.Level
	if player.Lines >= player.Level*LinesPerLevel {
		player.Level++
	}
	if ceiling := player.Lines/LinesPerLevel + 1; player.Level > ceiling {
		player.Level = ceiling
	}

	s.logger.Debug("score updated",
		zap.String("game_id", s.id),
		zap.String("player", playerID),
		zap.Int("lines", linesCleared),
		zap.Int("points", points),
		zap.Int("level", player.Level),
	)
	s.publishLocked(rules.NewEventWithAmount(rules.EventScoreChanged, s.id, playerID, points))
	if player.Level != levelBefore {
		s.publishLocked(rules.NewEventWithAmount(rules.EventLevelChanged, s.id, playerID, player.Level))
	}
	return points
}

// SetResources sets the player's currency balance, clamped to [0, 9999].
// Increases for the local player are additionally capped at +20 per call;
// these clamps are local invariant guards, not security checks.
func (s *Session) SetResources(playerID string, amount int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setResourcesLocked(playerID, amount)
}

func (s *Session) setResourcesLocked(playerID string, amount int) int {
	player, ok := s.players[playerID]
	if !ok {
		return 0
	}
	if amount < 0 {
		amount = 0
	}
	if amount > MaxResources {
		amount = MaxResources
	}
	if playerID == s.localPlayer && amount > player.Resources+MaxResourceGain {
		amount = player.Resources + MaxResourceGain
	}
	if amount == player.Resources {
		return amount
	}
	player.Resources = amount
	s.publishLocked(rules.NewEventWithAmount(rules.EventResourcesChanged, s.id, playerID, amount))
	return amount
}

// AddResources adds to the player's balance, subject to the SetResources
// clamps. Returns the new balance.
func (s *Session) AddResources(playerID string, amount int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return 0
	}
	return s.setResourcesLocked(playerID, player.Resources+amount)
}

// SubtractResources removes from the player's balance. Fails without
// mutation when the amount exceeds the current balance.
func (s *Session) SubtractResources(playerID string, amount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return false
	}
	if amount < 0 || amount > player.Resources {
		return false
	}
	s.setResourcesLocked(playerID, player.Resources-amount)
	return true
}
