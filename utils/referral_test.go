package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCoachReferralCode(t *testing.T) {
	pattern := regexp.MustCompile(`^CCH-[A-Z0-9]{6}$`)
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code, err := GenerateCoachReferralCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}

	// 100 draws from a 32^6 space should not all collide
	assert.Greater(t, len(seen), 90)
}
