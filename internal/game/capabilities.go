package game

// SponsorProvider supplies sponsor attachments for newly spawned pieces.
// The bidding collaborator behind it may be absent or offline; the no-op
// implementation stands in for it.
type SponsorProvider interface {
	// NextSponsor returns the sponsor to attach to the next spawned piece.
	// The second return value is false when no sponsor is available.
	NextSponsor(gameID, playerID string) (Sponsor, bool)
}

// NopSponsorProvider never attaches a sponsor.
type NopSponsorProvider struct{}

func (NopSponsorProvider) NextSponsor(gameID, playerID string) (Sponsor, bool) {
	return Sponsor{}, false
}

// EliminationNotifier receives elimination and game-over signals. It is
// injected into the session at construction so the chess subsystem never
// reaches back into a game manager at runtime.
type EliminationNotifier interface {
	PlayerEliminated(gameID, playerID string)
	GameFinished(gameID, winnerID string)
}

// NopEliminationNotifier ignores all signals.
type NopEliminationNotifier struct{}

func (NopEliminationNotifier) PlayerEliminated(gameID, playerID string) {}

func (NopEliminationNotifier) GameFinished(gameID, winnerID string) {}
