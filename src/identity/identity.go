// Package identity implements the cryptographic primitives the core
// consumes at its C1 boundary: canonical hashing, signing, signature
// recovery and address derivation. It follows the same secp256k1
// Sign/Ecrecover pattern the teacher's bundlr.EtherumSigner uses, built
// directly on go-ethereum/crypto.
package identity

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Primitives is the concrete implementation of the identity-primitives
// contract described in spec §6. It holds no state: every operation is a
// pure function of its arguments.
type Primitives struct{}

func New() *Primitives {
	return &Primitives{}
}

// CalculateHash returns the 0x-prefixed, 32-byte Keccak-256 hash of the
// canonical JSON encoding of obj.
func (p *Primitives) CalculateHash(obj any) (string, error) {
	canonical, err := canonicalize(obj)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	hash := crypto.Keccak256(canonical)
	return hexutil.Encode(hash), nil
}

// CheckHashMatches reports whether hash equals CalculateHash(obj).
func (p *Primitives) CheckHashMatches(hash string, obj any) (bool, error) {
	computed, err := p.CalculateHash(obj)
	if err != nil {
		return false, err
	}
	return computed == hash, nil
}

// Sign signs obj's canonical hash with secret and returns a 0x-prefixed
// 65-byte signature (r || s || v).
func (p *Primitives) Sign(secret *ecdsa.PrivateKey, obj any) (string, error) {
	canonical, err := canonicalize(obj)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	hash := crypto.Keccak256(canonical)
	sig, err := crypto.Sign(hash, secret)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return hexutil.Encode(sig), nil
}

// ValidateSignature recovers the address that produced signature over
// obj's canonical hash and fails loudly (per spec §6) if it doesn't match
// address.
func (p *Primitives) ValidateSignature(address string, signature string, obj any) error {
	canonical, err := canonicalize(obj)
	if err != nil {
		return fmt.Errorf("canonicalize: %w", err)
	}
	hash := crypto.Keccak256(canonical)

	sigBytes, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sigBytes) != 65 {
		return fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	pubKey, err := crypto.SigToPub(hash, sigBytes)
	if err != nil {
		return fmt.Errorf("recover public key: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	if common.HexToAddress(address).Cmp(recovered) != 0 {
		return fmt.Errorf("signature was not produced by %s", address)
	}
	return nil
}

// AddressFromSecret derives the 0x-prefixed 20-byte address corresponding
// to secret's public key.
func (p *Primitives) AddressFromSecret(secret *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(secret.PublicKey).Hex()
}

// canonicalize produces a deterministic byte encoding of obj. Go's
// encoding/json already sorts map keys, so marshaling a map[string]any or
// a struct gives a stable result across calls.
func canonicalize(obj any) ([]byte, error) {
	return json.Marshal(obj)
}
