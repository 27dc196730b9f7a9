// Package cache implements the negative cache the Challenge worker uses to
// avoid retrying a challenge it just failed (spec §4.4).
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// FailedChallengeCache maps challengeId to an expiry, backed by
// patrickmn/go-cache the way totegamma-concrnt-playground's chunkline
// gateway caches manifests.
type FailedChallengeCache struct {
	inner *gocache.Cache
}

// New builds an empty cache. Cleanup runs on its own timer independent of
// clearOutdatedChallenges, which the Challenge worker also calls explicitly
// per tick.
func New() *FailedChallengeCache {
	return &FailedChallengeCache{inner: gocache.New(gocache.NoExpiration, time.Minute)}
}

// RememberFailedChallenge records that challengeId failed and should not be
// retried until ttl has elapsed. Last write wins.
func (c *FailedChallengeCache) RememberFailedChallenge(challengeId string, ttl time.Duration) {
	c.inner.Set(challengeId, struct{}{}, ttl)
}

// DidChallengeFailRecently reports whether challengeId has an unexpired
// failure entry.
func (c *FailedChallengeCache) DidChallengeFailRecently(challengeId string) bool {
	_, found := c.inner.Get(challengeId)
	return found
}

// ClearOutdatedChallenges drops every expired entry. go-cache's Get already
// reports an expired entry as absent but leaves it stored, so the periodic
// worker calls this explicitly per spec §4.3.2 step 4 to keep expired
// entries from piling up between janitor runs.
func (c *FailedChallengeCache) ClearOutdatedChallenges() {
	c.inner.DeleteExpired()
}
