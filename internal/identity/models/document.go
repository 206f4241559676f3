package models

import "time"

// DID is a decentralized identifier in the did:pid method.
type DID string

// KeyType enumerates supported verification key algorithms.
type KeyType string

const (
	KeyTypeEd25519   KeyType = "Ed25519"
	KeyTypeSecp256k1 KeyType = "Secp256k1"
)

// Verification method and proof type tags. Method type and signature
// algorithm must agree; VerifyDocumentProof enforces the pairing.
const (
	MethodTypeEd25519       = "Ed25519VerificationKey2020"
	MethodTypeSecp256k1     = "EcdsaSecp256k1VerificationKey2019"
	MethodTypeWalletAccount = "EcdsaSecp256k1RecoveryMethod2020"

	ProofTypeEd25519   = "Ed25519Signature2020"
	ProofTypeSecp256k1 = "EcdsaSecp256k1Signature2019"
)

// VerificationMethod is a single key descriptor in a DID document.
type VerificationMethod struct {
	ID                  string `json:"id"`
	Type                string `json:"type"`
	Controller          string `json:"controller"`
	PublicKeyHex        string `json:"publicKeyHex,omitempty"`
	BlockchainAccountID string `json:"blockchainAccountId,omitempty"`
}

// Service is a DID document service endpoint.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Proof is the document self-proof, signed by an authoritative key.
type Proof struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	VerificationMethod string    `json:"verificationMethod"`
	ProofPurpose       string    `json:"proofPurpose"`
	SignatureHex       string    `json:"signatureHex"`
}

// Document is a DID document. The proof must verify against the verification
// method it names; Updated is monotonically non-decreasing.
type Document struct {
	Context              []string             `json:"@context"`
	ID                   DID                  `json:"id"`
	Controller           string               `json:"controller,omitempty"`
	VerificationMethod   []VerificationMethod `json:"verificationMethod"`
	Authentication       []string             `json:"authentication"`
	AssertionMethod      []string             `json:"assertionMethod"`
	KeyAgreement         []string             `json:"keyAgreement"`
	CapabilityInvocation []string             `json:"capabilityInvocation"`
	CapabilityDelegation []string             `json:"capabilityDelegation"`
	Service              []Service            `json:"service,omitempty"`
	Created              time.Time            `json:"created"`
	Updated              time.Time            `json:"updated"`
	Proof                *Proof               `json:"proof,omitempty"`
}

// Method returns the verification method with the given id, or nil.
func (d *Document) Method(id string) *VerificationMethod {
	for i := range d.VerificationMethod {
		if d.VerificationMethod[i].ID == id {
			return &d.VerificationMethod[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can build candidate documents without
// mutating the resolved one. Rotation relies on this for atomicity.
func (d *Document) Clone() *Document {
	out := *d
	out.Context = append([]string(nil), d.Context...)
	out.VerificationMethod = append([]VerificationMethod(nil), d.VerificationMethod...)
	out.Authentication = append([]string(nil), d.Authentication...)
	out.AssertionMethod = append([]string(nil), d.AssertionMethod...)
	out.KeyAgreement = append([]string(nil), d.KeyAgreement...)
	out.CapabilityInvocation = append([]string(nil), d.CapabilityInvocation...)
	out.CapabilityDelegation = append([]string(nil), d.CapabilityDelegation...)
	out.Service = append([]Service(nil), d.Service...)
	if d.Proof != nil {
		p := *d.Proof
		out.Proof = &p
	}
	return &out
}

// Resolution is the outcome of resolving a DID.
type Resolution struct {
	Document *Document          `json:"didDocument"`
	Metadata ResolutionMetadata `json:"didDocumentMetadata"`
}

// ResolutionMetadata carries lifecycle state alongside the document.
type ResolutionMetadata struct {
	Deactivated bool  `json:"deactivated"`
	Version     int64 `json:"versionId"`
}
