package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewWalletAddress generates a random 0x-prefixed 40-hex-char wallet address.
// Addresses are opaque identifiers here, not keys to anything.
func NewWalletAddress() string {
	return "0x" + randomHex(20)
}

// NewTxHash generates a random 0x-prefixed 64-hex-char transaction hash.
func NewTxHash() string {
	return "0x" + randomHex(32)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("ledger: reading random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}

// randomNonce returns a random integer in [0, 1000000). The nonce is purely
// cosmetic: no proof-of-work search is performed against it.
func randomNonce() uint64 {
	return randomUint64(1_000_000)
}

// randomDifficulty returns a display difficulty in [1000000, 1100000).
func randomDifficulty() uint64 {
	return 1_000_000 + randomUint64(100_000)
}

// displayGasUsed returns a display string like "0.0042 ETH" in the range
// [0.0010, 0.0060).
func displayGasUsed() string {
	frac := randomUint64(5_000) // ten-thousandths of an ETH above the base
	return fmt.Sprintf("%.4f ETH", 0.0010+float64(frac)/10_000.0)
}

func randomUint64(max int64) uint64 {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		panic(fmt.Sprintf("ledger: reading random int: %v", err))
	}
	return n.Uint64()
}
