package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShannonEntropy(t *testing.T) {
	assert.Zero(t, shannonEntropy(""))
	assert.Zero(t, shannonEntropy("aaaa"))
	assert.InDelta(t, 2.0, shannonEntropy("abcd"), 1e-9)

	// Random-looking strings score higher than dictionary words.
	assert.Greater(t, shannonEntropy("xk3j9qz2vb8w"), shannonEntropy("google"))
}

func TestCategorizeTLD(t *testing.T) {
	assert.Equal(t, "common", categorizeTLD("com"))
	assert.Equal(t, "common", categorizeTLD("IO"))
	assert.Equal(t, "suspicious", categorizeTLD("tk"))
	assert.Equal(t, "suspicious", categorizeTLD("xyz"))
	assert.Equal(t, "rare", categorizeTLD("museum"))
	assert.Equal(t, "rare", categorizeTLD(""))
}

func TestHasIPPattern(t *testing.T) {
	assert.True(t, hasIPPattern("1.2.3.4"))
	assert.True(t, hasIPPattern("host.192.example.com"))
	assert.False(t, hasIPPattern("example.com"))
	assert.False(t, hasIPPattern("999.example.com"))
}

func TestMaxConsonantStreak(t *testing.T) {
	assert.Equal(t, 0, maxConsonantStreak("aeiou"))
	assert.Equal(t, 1, maxConsonantStreak("banana"))
	assert.Equal(t, 8, maxConsonantStreak("xkcdqwrt.com"))

	// Digits and dots break a streak.
	assert.Equal(t, 2, maxConsonantStreak("ab3f91x.tk"))
}
