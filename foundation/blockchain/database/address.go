package database

import (
	"crypto/rsa"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// MintAddress is the sender used by transactions the system creates to
// issue new coins. It is never a valid public key.
const MintAddress Address = "0"

// =============================================================================

// Address represents an account on the blockchain. It is the string form of
// the account's RSA public key and doubles as the signature verification key.
type Address string

// PublicKeyToAddress converts the public key to an address value.
func PublicKeyToAddress(pk *rsa.PublicKey) Address {
	return Address(signature.PublicKeyToAddress(pk))
}

// IsMint reports whether the address is the system mint source.
func (a Address) IsMint() bool {
	return a == MintAddress
}

// String implements the fmt.Stringer interface for logging. Addresses are
// long so only a prefix is shown.
func (a Address) String() string {
	const show = 16
	if len(a) <= show {
		return string(a)
	}
	return string(a[:show]) + "..."
}
