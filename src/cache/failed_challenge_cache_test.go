package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFailedChallengeCache_RememberAndCheck(t *testing.T) {
	c := New()
	assert.False(t, c.DidChallengeFailRecently("chal-1"))

	c.RememberFailedChallenge("chal-1", time.Minute)
	assert.True(t, c.DidChallengeFailRecently("chal-1"))
	assert.False(t, c.DidChallengeFailRecently("chal-2"))
}

func TestFailedChallengeCache_ExpiresAfterTTL(t *testing.T) {
	c := New()
	c.RememberFailedChallenge("chal-1", 10*time.Millisecond)
	assert.True(t, c.DidChallengeFailRecently("chal-1"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.DidChallengeFailRecently("chal-1"))
}

func TestFailedChallengeCache_ClearOutdatedChallenges(t *testing.T) {
	c := New()
	c.RememberFailedChallenge("chal-1", 10*time.Millisecond)
	c.RememberFailedChallenge("chal-2", time.Hour)

	time.Sleep(20 * time.Millisecond)
	c.ClearOutdatedChallenges()

	assert.False(t, c.DidChallengeFailRecently("chal-1"))
	assert.True(t, c.DidChallengeFailRecently("chal-2"))
}
