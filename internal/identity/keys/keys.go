// Package keys implements key generation, signing, and verification for the
// two key algorithms the registry supports. Method-type and signature
// algorithm always travel together; mismatches are verification failures,
// never silent fallbacks.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	secp "github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"privid/internal/identity/models"
	dErrors "privid/pkg/domain-errors"
)

// KeyPair holds one signing key. Private is nil for verification-only use.
type KeyPair struct {
	Type    models.KeyType
	Public  []byte
	Private []byte
}

// Generate creates a fresh key pair of the given type.
func Generate(kt models.KeyType) (*KeyPair, error) {
	switch kt {
	case models.KeyTypeEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		return &KeyPair{Type: kt, Public: pub, Private: priv}, nil
	case models.KeyTypeSecp256k1:
		priv, err := secp.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate secp256k1 key: %w", err)
		}
		return &KeyPair{
			Type:    kt,
			Public:  priv.PubKey().SerializeCompressed(),
			Private: priv.Serialize(),
		}, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported key type %q", kt))
	}
}

// FromPrivate reconstructs a key pair from raw private key bytes.
func FromPrivate(kt models.KeyType, priv []byte) (*KeyPair, error) {
	switch kt {
	case models.KeyTypeEd25519:
		if len(priv) != ed25519.PrivateKeySize {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "malformed ed25519 private key")
		}
		pub := ed25519.PrivateKey(priv).Public().(ed25519.PublicKey)
		return &KeyPair{Type: kt, Public: pub, Private: priv}, nil
	case models.KeyTypeSecp256k1:
		if len(priv) != 32 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "malformed secp256k1 private key")
		}
		sk := secp.PrivKeyFromBytes(priv)
		return &KeyPair{Type: kt, Public: sk.PubKey().SerializeCompressed(), Private: priv}, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported key type %q", kt))
	}
}

// Sign produces a signature over msg. secp256k1 signs the SHA-256 digest;
// Ed25519 signs the message directly per RFC 8032.
func (k *KeyPair) Sign(msg []byte) ([]byte, error) {
	if len(k.Private) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "key pair has no private key")
	}
	switch k.Type {
	case models.KeyTypeEd25519:
		if len(k.Private) != ed25519.PrivateKeySize {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "malformed ed25519 private key")
		}
		return ed25519.Sign(ed25519.PrivateKey(k.Private), msg), nil
	case models.KeyTypeSecp256k1:
		priv := secp.PrivKeyFromBytes(k.Private)
		digest := sha256.Sum256(msg)
		return secpecdsa.Sign(priv, digest[:]).Serialize(), nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported key type %q", k.Type))
	}
}

// Verify checks sig over msg for the given key type and public key.
// Any parse failure is a verification failure: fail closed.
func Verify(kt models.KeyType, pub, msg, sig []byte) bool {
	switch kt {
	case models.KeyTypeEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
	case models.KeyTypeSecp256k1:
		pubKey, err := secp.ParsePubKey(pub)
		if err != nil {
			return false
		}
		parsed, err := secpecdsa.ParseDERSignature(sig)
		if err != nil {
			return false
		}
		digest := sha256.Sum256(msg)
		return parsed.Verify(digest[:], pubKey)
	default:
		return false
	}
}

// Zeroize wipes the private key material in place.
func (k *KeyPair) Zeroize() {
	for i := range k.Private {
		k.Private[i] = 0
	}
	k.Private = nil
}

// PublicHex returns the hex encoding used in verification methods.
func (k *KeyPair) PublicHex() string {
	return hex.EncodeToString(k.Public)
}

// MethodType maps a key type to its DID verification method type.
func MethodType(kt models.KeyType) (string, error) {
	switch kt {
	case models.KeyTypeEd25519:
		return models.MethodTypeEd25519, nil
	case models.KeyTypeSecp256k1:
		return models.MethodTypeSecp256k1, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported key type %q", kt))
	}
}

// ProofType maps a key type to its signature proof type.
func ProofType(kt models.KeyType) (string, error) {
	switch kt {
	case models.KeyTypeEd25519:
		return models.ProofTypeEd25519, nil
	case models.KeyTypeSecp256k1:
		return models.ProofTypeSecp256k1, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported key type %q", kt))
	}
}

// KeyTypeForMethod is the inverse of MethodType.
func KeyTypeForMethod(methodType string) (models.KeyType, error) {
	switch methodType {
	case models.MethodTypeEd25519:
		return models.KeyTypeEd25519, nil
	case models.MethodTypeSecp256k1:
		return models.KeyTypeSecp256k1, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported method type %q", methodType))
	}
}

// ProofMatchesMethod reports whether a proof type is valid for a method type.
func ProofMatchesMethod(proofType, methodType string) bool {
	switch proofType {
	case models.ProofTypeEd25519:
		return methodType == models.MethodTypeEd25519
	case models.ProofTypeSecp256k1:
		return methodType == models.MethodTypeSecp256k1
	default:
		return false
	}
}
