// Package keys defines ledger addresses, ed25519 signing identities, and the
// deterministic derivation of protocol-owned addresses.
//
// An Address is either the public key of a signing identity (a wallet) or a
// program-derived address. Derived addresses are guaranteed to fall outside
// the ed25519 curve, so no private key can ever authorize transfers from them;
// only the owning program namespace can.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLen is the byte length of a ledger address.
const AddressLen = 32

// Address identifies an account on the ledger.
type Address [AddressLen]byte

// ZeroAddress is the all-zero address. It doubles as the system namespace that
// owns plain wallet accounts.
var ZeroAddress Address

// String returns the base58 text form of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns the raw 32 bytes of the address.
func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Short returns a shortened form for logs and display.
func (a Address) Short() string {
	s := a.String()
	if len(s) < 11 {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// ParseAddress decodes a base58-encoded address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("parse address %q: %w", s, err)
	}
	if len(raw) != AddressLen {
		return a, fmt.Errorf("parse address %q: got %d bytes, want %d", s, len(raw), AddressLen)
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for known-good constants. It panics on
// malformed input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Signer is the signing capability required to authorize ledger transactions.
// It is satisfied by Keypair and by test doubles.
type Signer interface {
	// Address returns the signing identity's address.
	Address() Address

	// Sign returns an ed25519 signature over message.
	Sign(message []byte) []byte
}

// Keypair is an ed25519 signing identity.
type Keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewKeypair generates a fresh signing identity.
func NewKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{pub: pub, priv: priv}, nil
}

// Address returns the public key as a ledger address.
func (k *Keypair) Address() Address {
	var a Address
	copy(a[:], k.pub)
	return a
}

// Sign signs message with the private key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// Verify reports whether sig is a valid signature over message by addr.
func Verify(addr Address, message, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(addr[:]), message, sig)
}
