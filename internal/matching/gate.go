package matching

import "dailymatch/backend/internal/models"

// RankGate decides who may enter the queue.
type RankGate struct {
	ranks map[string]struct{}
}

// NewRankGate accepts members holding one of ranks.
func NewRankGate(ranks []string) *RankGate {
	g := &RankGate{ranks: make(map[string]struct{}, len(ranks))}
	for _, r := range ranks {
		g.ranks[r] = struct{}{}
	}
	return g
}

// CanEnqueue reports whether member is VERIFIED and holds a known rank.
func (g *RankGate) CanEnqueue(member *models.Member) bool {
	if !member.IsVerified() || member.Rank == "" {
		return false
	}
	return g.KnownRank(member.Rank)
}

// KnownRank reports whether rank is one of the configured ranks.
func (g *RankGate) KnownRank(rank string) bool {
	_, ok := g.ranks[rank]
	return ok
}
