package auth

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recoveryCodeFormat = regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}$`)

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, hashes, err := GenerateRecoveryCodes(0)
	require.NoError(t, err)
	assert.Len(t, codes, recoveryCodeCount)
	assert.Len(t, hashes, recoveryCodeCount)

	for i, code := range codes {
		assert.Regexp(t, recoveryCodeFormat, code)
		assert.NotEqual(t, code, hashes[i])
	}
}

func TestVerifyRecoveryCodeConsumes(t *testing.T) {
	codes, hashes, err := GenerateRecoveryCodes(3)
	require.NoError(t, err)
	stored, err := json.Marshal(hashes)
	require.NoError(t, err)

	valid, remaining := VerifyRecoveryCode(codes[1], string(stored))
	assert.True(t, valid)

	var left []string
	require.NoError(t, json.Unmarshal([]byte(remaining), &left))
	assert.Len(t, left, 2)

	// The consumed code no longer works against the remainder.
	valid, _ = VerifyRecoveryCode(codes[1], remaining)
	assert.False(t, valid)

	// The others still do.
	valid, _ = VerifyRecoveryCode(codes[0], remaining)
	assert.True(t, valid)
}

func TestVerifyRecoveryCodeRejects(t *testing.T) {
	_, hashes, err := GenerateRecoveryCodes(2)
	require.NoError(t, err)
	stored, err := json.Marshal(hashes)
	require.NoError(t, err)

	valid, remaining := VerifyRecoveryCode("0000-0000", string(stored))
	assert.False(t, valid)
	assert.Equal(t, string(stored), remaining)

	valid, remaining = VerifyRecoveryCode("anything", "not json")
	assert.False(t, valid)
	assert.Equal(t, "[]", remaining)
}
