package groth16

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.dedis.ch/kyber/v3"

	"privid/pkg/zk"
)

// Wire layout for keys at rest. Points travel as lowercase hex of their
// canonical marshaling.

type verifyingKeyDTO struct {
	AlphaG1 string   `json:"alphaG1"`
	BetaG2  string   `json:"betaG2"`
	GammaG2 string   `json:"gammaG2"`
	DeltaG2 string   `json:"deltaG2"`
	IC      []string `json:"ic"`
}

type provingKeyDTO struct {
	AlphaG1 string   `json:"alphaG1"`
	BetaG1  string   `json:"betaG1"`
	DeltaG1 string   `json:"deltaG1"`
	BetaG2  string   `json:"betaG2"`
	DeltaG2 string   `json:"deltaG2"`
	L       []string `json:"l"`
}

func pointHex(p kyber.Point) (string, error) {
	b, err := p.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("groth16: marshal point: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func g1FromHex(s string) (kyber.Point, error) {
	return pointFromHex(zk.Suite().G1().Point(), s)
}

func g2FromHex(s string) (kyber.Point, error) {
	return pointFromHex(zk.Suite().G2().Point(), s)
}

func pointFromHex(p kyber.Point, s string) (kyber.Point, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("groth16: decode point hex: %w", err)
	}
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("groth16: unmarshal point: %w", err)
	}
	return p, nil
}

// MarshalVerifyingKey encodes a verifying key as JSON.
func MarshalVerifyingKey(vk *VerifyingKey) ([]byte, error) {
	dto := verifyingKeyDTO{IC: make([]string, len(vk.IC))}
	var err error
	if dto.AlphaG1, err = pointHex(vk.AlphaG1); err != nil {
		return nil, err
	}
	if dto.BetaG2, err = pointHex(vk.BetaG2); err != nil {
		return nil, err
	}
	if dto.GammaG2, err = pointHex(vk.GammaG2); err != nil {
		return nil, err
	}
	if dto.DeltaG2, err = pointHex(vk.DeltaG2); err != nil {
		return nil, err
	}
	for i, p := range vk.IC {
		if dto.IC[i], err = pointHex(p); err != nil {
			return nil, err
		}
	}
	return json.Marshal(dto)
}

// UnmarshalVerifyingKey decodes a verifying key from JSON.
func UnmarshalVerifyingKey(raw []byte) (*VerifyingKey, error) {
	var dto verifyingKeyDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("groth16: decode verifying key: %w", err)
	}
	if len(dto.IC) < 2 {
		return nil, fmt.Errorf("groth16: verifying key needs at least 2 ic points, got %d", len(dto.IC))
	}
	vk := &VerifyingKey{IC: make([]kyber.Point, len(dto.IC))}
	var err error
	if vk.AlphaG1, err = g1FromHex(dto.AlphaG1); err != nil {
		return nil, err
	}
	if vk.BetaG2, err = g2FromHex(dto.BetaG2); err != nil {
		return nil, err
	}
	if vk.GammaG2, err = g2FromHex(dto.GammaG2); err != nil {
		return nil, err
	}
	if vk.DeltaG2, err = g2FromHex(dto.DeltaG2); err != nil {
		return nil, err
	}
	for i, s := range dto.IC {
		if vk.IC[i], err = g1FromHex(s); err != nil {
			return nil, err
		}
	}
	return vk, nil
}

// MarshalProvingKey encodes a proving key as JSON.
func MarshalProvingKey(pk *ProvingKey) ([]byte, error) {
	dto := provingKeyDTO{L: make([]string, len(pk.L))}
	var err error
	if dto.AlphaG1, err = pointHex(pk.AlphaG1); err != nil {
		return nil, err
	}
	if dto.BetaG1, err = pointHex(pk.BetaG1); err != nil {
		return nil, err
	}
	if dto.DeltaG1, err = pointHex(pk.DeltaG1); err != nil {
		return nil, err
	}
	if dto.BetaG2, err = pointHex(pk.BetaG2); err != nil {
		return nil, err
	}
	if dto.DeltaG2, err = pointHex(pk.DeltaG2); err != nil {
		return nil, err
	}
	for i, p := range pk.L {
		if dto.L[i], err = pointHex(p); err != nil {
			return nil, err
		}
	}
	return json.Marshal(dto)
}

// UnmarshalProvingKey decodes a proving key from JSON.
func UnmarshalProvingKey(raw []byte) (*ProvingKey, error) {
	var dto provingKeyDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("groth16: decode proving key: %w", err)
	}
	if len(dto.L) < 2 {
		return nil, fmt.Errorf("groth16: proving key needs at least 2 l points, got %d", len(dto.L))
	}
	pk := &ProvingKey{L: make([]kyber.Point, len(dto.L))}
	var err error
	if pk.AlphaG1, err = g1FromHex(dto.AlphaG1); err != nil {
		return nil, err
	}
	if pk.BetaG1, err = g1FromHex(dto.BetaG1); err != nil {
		return nil, err
	}
	if pk.DeltaG1, err = g1FromHex(dto.DeltaG1); err != nil {
		return nil, err
	}
	if pk.BetaG2, err = g2FromHex(dto.BetaG2); err != nil {
		return nil, err
	}
	if pk.DeltaG2, err = g2FromHex(dto.DeltaG2); err != nil {
		return nil, err
	}
	for i, s := range dto.L {
		if pk.L[i], err = g1FromHex(s); err != nil {
			return nil, err
		}
	}
	return pk, nil
}

// VerifyingKeyHash returns the SHA-256 of the key's wire form, used to pin
// a circuit artifact against substitution.
func VerifyingKeyHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ProofPoints returns the proof's three points as hex strings.
func ProofPoints(p *Proof) (a, b, c string, err error) {
	if a, err = pointHex(p.A); err != nil {
		return "", "", "", err
	}
	if b, err = pointHex(p.B); err != nil {
		return "", "", "", err
	}
	if c, err = pointHex(p.C); err != nil {
		return "", "", "", err
	}
	return a, b, c, nil
}

// ProofFromPoints rebuilds a proof from its hex points.
func ProofFromPoints(a, b, c string) (*Proof, error) {
	pa, err := g1FromHex(a)
	if err != nil {
		return nil, err
	}
	pb, err := g2FromHex(b)
	if err != nil {
		return nil, err
	}
	pc, err := g1FromHex(c)
	if err != nil {
		return nil, err
	}
	return &Proof{A: pa, B: pb, C: pc}, nil
}
