package crypto

import (
	"errors"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestSignRecoverText(t *testing.T) {
	t.Parallel()

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)
	msg := RegistrationMessage(addr)

	sig, err := SignText(msg, key)
	require.NoError(t, err)
	require.GreaterOrEqual(t, sig[64], byte(27))
	require.NoError(t, VerifyText(addr, msg, sig))

	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	require.NoError(t, VerifyText(addr, msg, raw), "V in 0/1 form is accepted")
}

func TestVerifyText_Rejects(t *testing.T) {
	t.Parallel()

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	other, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)

	sig, err := SignText(RegistrationMessage(addr), other)
	require.NoError(t, err)
	require.True(t, errors.Is(VerifyText(addr, RegistrationMessage(addr), sig), ErrBadSignature))

	sig, err = SignText("something else", key)
	require.NoError(t, err)
	require.True(t, errors.Is(VerifyText(addr, RegistrationMessage(addr), sig), ErrBadSignature))

	require.True(t, errors.Is(VerifyText(addr, "m", []byte{1, 2}), ErrBadSignature))
}
