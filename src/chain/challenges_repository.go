package chain

import "context"

// ChallengesRepository is the thin adapter over the on-chain challenge
// feed the Challenge worker consumes (spec §2, C5).
type ChallengesRepository struct {
	client Client
}

func NewChallengesRepository(client Client) *ChallengesRepository {
	return &ChallengesRepository{client: client}
}

// OngoingChallenges returns the ordered challenge feed (spec §4.3.2).
func (r *ChallengesRepository) OngoingChallenges(ctx context.Context) ([]Challenge, error) {
	return r.client.OngoingChallenges(ctx)
}

func (r *ChallengesRepository) ResolveChallenge(ctx context.Context, challengeId string) error {
	return r.client.ResolveChallenge(ctx, challengeId)
}
