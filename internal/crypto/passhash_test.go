package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPasswordHash(t *testing.T) {
	t.Parallel()

	a, err := NewPasswordHash("p@ssw0rd")
	require.NoError(t, err)
	require.Len(t, a.Salt, SaltLen)
	require.NotEmpty(t, a.Hash)

	b, err := NewPasswordHash("p@ssw0rd")
	require.NoError(t, err)
	require.False(t, bytes.Equal(a.Salt, b.Salt), "salt must be fresh per account")
	require.False(t, bytes.Equal(a.Hash, b.Hash))

	_, err = NewPasswordHash("")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestPasswordHash_Matches(t *testing.T) {
	t.Parallel()

	h, err := NewPasswordHash("correct horse battery staple")
	require.NoError(t, err)

	require.True(t, h.Matches("correct horse battery staple"))
	require.False(t, h.Matches("wrong"))
	require.False(t, h.Matches(""))

	other := PasswordHash{Hash: h.Hash, Salt: []byte("wrong-salt------")}
	require.False(t, other.Matches("correct horse battery staple"))

	require.False(t, PasswordHash{}.Matches(""), "zero value never matches")
}
