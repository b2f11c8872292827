package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Sui signature scheme flags. Only ed25519 wallets are accepted; the other
// schemes the chain supports are rejected rather than half-verified.
const (
	schemeFlagEd25519 byte = 0x00

	ed25519SignatureLen = 64
	ed25519PublicKeyLen = 32
)

// Intent scope bytes prepended to a personal message before hashing, per the
// Sui signing spec: scope=PersonalMessage(3), version=0, app_id=0.
var personalMessageIntent = []byte{3, 0, 0}

// VerifyPersonalMessageSignature checks that `signature` is a valid Sui
// personal-message signature over `message`, produced by the key that owns
// `address`. The signature is the serialized form the wallet returns:
// base64(flag || sig || pubkey).
//
// A credential must never be issued unless this check passes: the subject
// embedded in the credential is trusted downstream by everything that guards
// order mutation.
func VerifyPersonalMessageSignature(address, signature, message string) error {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return ErrInvalidToken
	}
	if len(raw) != 1+ed25519SignatureLen+ed25519PublicKeyLen {
		return ErrInvalidToken
	}
	flag := raw[0]
	if flag != schemeFlagEd25519 {
		return ErrInvalidToken
	}

	sig := raw[1 : 1+ed25519SignatureLen]
	pubKey := raw[1+ed25519SignatureLen:]

	// The wallet signs blake2b-256(intent || bcs(message)), where the message
	// is BCS-encoded as a byte vector (ULEB128 length prefix + bytes).
	payload := make([]byte, 0, len(personalMessageIntent)+10+len(message))
	payload = append(payload, personalMessageIntent...)
	payload = appendULEB128(payload, uint64(len(message)))
	payload = append(payload, message...)
	digest := blake2b.Sum256(payload)

	if !ed25519.Verify(ed25519.PublicKey(pubKey), digest[:], sig) {
		return ErrInvalidToken
	}

	// The signing key must own the claimed address.
	if !strings.EqualFold(DeriveWalletAddress(flag, pubKey), strings.TrimSpace(address)) {
		return ErrInvalidToken
	}

	return nil
}

// DeriveWalletAddress computes the Sui address controlled by a public key:
// 0x || hex(blake2b-256(flag || pubkey)).
func DeriveWalletAddress(flag byte, pubKey []byte) string {
	material := make([]byte, 0, 1+len(pubKey))
	material = append(material, flag)
	material = append(material, pubKey...)
	sum := blake2b.Sum256(material)
	return "0x" + hex.EncodeToString(sum[:])
}

func appendULEB128(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}
