// Package auth verifies that a claimed wallet owner authorized a
// name-change message via a detached Ed25519 signature. One-shot
// verification only: no sessions, no nonce tracking — any freshness
// data is the caller's to embed in the message.
package auth

import (
	"crypto/ed25519"
	"errors"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"rentfree/internal/domain"
)

// MessagePrefix is the versioned namespace tag every signed name-update
// message must start with.
const MessagePrefix = "RENTFREE_NAME_UPDATE_V1:"

// Validation errors. Prefix and length failures are client-caused and
// reported descriptively; every cryptographic failure collapses into
// ErrSignatureInvalid so the response does not reveal which check failed.
var (
	ErrBadPrefix        = errors.New("message missing required prefix")
	ErrNameLength       = errors.New("display name length out of range")
	ErrSignatureInvalid = errors.New("signature verification failed")
)

// VerifyNameUpdate checks that signature is a valid detached Ed25519
// signature over the UTF-8 message, under the public key decoded from
// wallet. displayName comes from the mutation request, not from the
// message. Check order: prefix, name length, then cryptography.
func VerifyNameUpdate(wallet, displayName, message string, signature []byte) error {
	if !strings.HasPrefix(message, MessagePrefix) {
		return ErrBadPrefix
	}

	if len(displayName) < domain.DisplayNameMinLen || len(displayName) > domain.DisplayNameMaxLen {
		return ErrNameLength
	}

	pub, err := decodePublicKey(wallet)
	if err != nil {
		return ErrSignatureInvalid
	}

	if len(signature) != ed25519.SignatureSize {
		return ErrSignatureInvalid
	}

	if !ed25519.Verify(pub, []byte(message), signature) {
		return ErrSignatureInvalid
	}

	return nil
}

// decodePublicKey decodes a base58 wallet address into an Ed25519 public
// key, rejecting byte strings that are not valid curve points.
func decodePublicKey(wallet string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(wallet)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("wallet address is not a 32-byte key")
	}

	// ed25519.Verify alone accepts some encodings that are not canonical
	// curve points; reject them up front.
	if _, err := (&edwards25519.Point{}).SetBytes(raw); err != nil {
		return nil, err
	}

	return ed25519.PublicKey(raw), nil
}
