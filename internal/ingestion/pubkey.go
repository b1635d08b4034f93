package ingestion

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// validPubkey reports whether s decodes as a 32-byte base58 Solana address.
// Mint addresses are program-derived and may be off-curve, so only length
// is checked.
func validPubkey(s string) bool {
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// isOnCurve reports whether a 32-byte point is on the ed25519 curve.
// Wallet addresses are keypair-derived and therefore on-curve; PDAs are
// not.
func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// walletPubkey reports whether s looks like a real wallet address: 32
// bytes of base58 that land on the curve.
func walletPubkey(s string) bool {
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return isOnCurve(decoded)
}
