package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrBadSignature is returned when a signature does not recover to the claimed address.
var ErrBadSignature = errors.New("bad signature")

// RegistrationMessage is the text an address signs to prove control when registering.
func RegistrationMessage(addr common.Address) string {
	return "nft-farm account registration: " + strings.ToLower(addr.Hex())
}

// SignText produces an EIP-191 personal signature (V in {27,28}) over msg.
func SignText(msg string, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := ethcrypto.Sign(accounts.TextHash([]byte(msg)), key)
	if err != nil {
		return nil, err
	}
	sig[ethcrypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverText returns the signer of an EIP-191 personal signature over msg.
// V may be either 0/1 or 27/28.
func RecoverText(msg string, sig []byte) (common.Address, error) {
	if len(sig) != ethcrypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature length %d: %w", len(sig), ErrBadSignature)
	}
	s := append([]byte(nil), sig...)
	if s[ethcrypto.RecoveryIDOffset] >= 27 {
		s[ethcrypto.RecoveryIDOffset] -= 27
	}
	pub, err := ethcrypto.SigToPub(accounts.TextHash([]byte(msg)), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%v: %w", err, ErrBadSignature)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// VerifyText checks that sig is a personal signature by addr over msg.
func VerifyText(addr common.Address, msg string, sig []byte) error {
	got, err := RecoverText(msg, sig)
	if err != nil {
		return err
	}
	if got != addr {
		return fmt.Errorf("signed by %s: %w", got.Hex(), ErrBadSignature)
	}
	return nil
}
