package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"valid", "Sup3rSecret!", nil},
		{"too short", "Ab1!xyz", ErrPasswordTooShort},
		{"no uppercase", "alllower1!", ErrPasswordNoUpper},
		{"no special", "NoSpecial123", ErrPasswordNoSpecial},
		{"minimum length with all classes", "Abcdefg!", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice_42"))
	assert.ErrorIs(t, ValidateUsername("ab"), ErrUsernameLength)
	assert.ErrorIs(t, ValidateUsername("this_username_is_way_too_long_for_us"), ErrUsernameLength)
	assert.ErrorIs(t, ValidateUsername("bad name"), ErrUsernameCharset)
	assert.ErrorIs(t, ValidateUsername("dots.not.ok"), ErrUsernameCharset)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Sup3rSecret!")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3rSecret!", hash)

	assert.True(t, VerifyPassword("Sup3rSecret!", hash))
	assert.False(t, VerifyPassword("wrong", hash))
	assert.False(t, VerifyPassword("Sup3rSecret!", "not-a-hash"))
}
