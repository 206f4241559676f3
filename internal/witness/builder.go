package witness

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.dedis.ch/kyber/v3"

	"privid/internal/credential/models"
	dErrors "privid/pkg/domain-errors"
	"privid/pkg/zk"
)

// Clock abstracts time for testability.
type Clock func() time.Time

// Builder constructs circuit assignments from credentials the holder owns.
// It holds the holder master secret; per-purpose secrets are derived on
// demand and never stored.
type Builder struct {
	master []byte
	clock  Clock
}

// Option configures the Builder.
type Option func(*Builder)

// WithClock injects a clock for tests.
func WithClock(clock Clock) Option {
	return func(b *Builder) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// NewBuilder constructs a witness builder around a holder master secret.
func NewBuilder(master []byte, opts ...Option) (*Builder, error) {
	if len(master) != MasterSecretSize {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("master secret must be %d bytes, got %d", MasterSecretSize, len(master)))
	}
	b := &Builder{
		master: append([]byte(nil), master...),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// Zeroize wipes the builder's copy of the master secret. The builder is
// unusable afterwards; every Build returns an error.
func (b *Builder) Zeroize() {
	wipe(b.master)
	b.master = nil
}

// Request carries the verifier challenge and the predicate parameters for
// one proof. Fields irrelevant to the requested type are ignored.
type Request struct {
	Type           ProofType
	ChallengeNonce []byte

	// Age.
	MinAge int

	// Jurisdiction.
	AllowedRegions []string

	// Anti-sybil.
	RequiredConfidence uint64
	NetworkEpoch       uint64

	// Accredited investor.
	MinNetWorth int64
}

// Build assembles the assignment for one credential and one challenge.
// Structural problems (wrong credential, missing attribute, bad parameters)
// are CodeInvalidInput; an attribute that cannot satisfy the predicate is
// CodeRejected; a stale credential is CodeExpired. All of these surface at
// build time, before any proving work happens.
func (b *Builder) Build(cred *models.Credential, req Request) (*Assignment, error) {
	if cred == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential required")
	}
	if len(req.ChallengeNonce) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "challenge nonce required")
	}
	wantCred, err := CredentialType(req.Type)
	if err != nil {
		return nil, err
	}
	if cred.PurposeType() != wantCred {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("proof type %s needs a %s, got %s", req.Type, wantCred, cred.PurposeType()))
	}
	now := b.clock().UTC()
	if cred.Expired(now) {
		return nil, dErrors.New(dErrors.CodeExpired,
			fmt.Sprintf("credential %s expired at %s", cred.ID, cred.ExpirationDate.Format(time.RFC3339)))
	}

	secret, err := purposeSecret(b.master, req.Type)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "derive purpose secret")
	}
	nul, err := nullifier(secret, req.Type, constraintTag(req), req.ChallengeNonce)
	if err != nil {
		zk.Zeroize(secret)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "derive nullifier")
	}

	var a *Assignment
	switch req.Type {
	case ProofAge:
		a, err = buildAge(cred, req, secret, nul)
	case ProofJurisdiction:
		a, err = buildJurisdiction(cred, req, secret, nul)
	case ProofAntiSybil:
		a, err = buildAntiSybil(cred, req, now, secret, nul)
	case ProofAccreditedInvestor:
		a, err = buildAccredited(cred, req, secret, nul)
	}
	if err != nil {
		zk.Zeroize(secret, nul)
		return nil, err
	}
	return a, nil
}

// constraintTag encodes the predicate parameters of a request into the
// nullifier input. Proving a different statement (over18 vs over21, another
// allow list, a higher confidence floor) is a fresh statement and must not
// collide with an earlier nullifier under the same challenge. Region names
// are normalized and sorted so list order does not change the tag.
func constraintTag(req Request) []byte {
	tag := make([]byte, 0, 64)
	u64 := func(v uint64) {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], v)
		tag = append(tag, buf[:]...)
	}
	switch req.Type {
	case ProofAge:
		u64(uint64(req.MinAge))
	case ProofJurisdiction:
		regions := make([]string, 0, len(req.AllowedRegions))
		for _, r := range req.AllowedRegions {
			regions = append(regions, strings.ToUpper(strings.TrimSpace(r)))
		}
		sort.Strings(regions)
		for _, r := range regions {
			u64(uint64(len(r)))
			tag = append(tag, r...)
		}
	case ProofAntiSybil:
		u64(req.RequiredConfidence)
		u64(req.NetworkEpoch)
	case ProofAccreditedInvestor:
		u64(uint64(req.MinNetWorth))
	}
	return tag
}

// ageThresholds maps a requested minimum age to the credential flag that
// attests it. Only these thresholds exist as circuit variants.
var ageThresholds = map[int]string{
	18: "over18",
	21: "over21",
	25: "over25",
	65: "over65",
}

func buildAge(cred *models.Credential, req Request, secret, nul kyber.Scalar) (*Assignment, error) {
	flagClaim, ok := ageThresholds[req.MinAge]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("unsupported age threshold %d", req.MinAge))
	}
	over, err := claimBool(cred, flagClaim)
	if err != nil {
		return nil, err
	}
	if !over {
		return nil, dErrors.New(dErrors.CodeRejected,
			fmt.Sprintf("credential does not attest age over %d", req.MinAge))
	}
	bucket, err := claimString(cred, "ageBucket")
	if err != nil {
		return nil, err
	}

	salt, err := newSalt()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "age commitment salt")
	}
	com, err := commitment(secret, salt, []byte(bucket))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "age commitment")
	}
	saltScalar := zk.HashToField("privid/witness/salt/v1", salt)
	wipe(salt)

	return &Assignment{
		ProofType: ProofAge,
		CircuitID: CircuitAge,
		Private: []kyber.Scalar{
			zk.HashToField("privid/witness/age/v1", []byte(bucket)),
			saltScalar,
			secret,
		},
		Public: []kyber.Scalar{
			zk.ScalarFromUint64(uint64(req.MinAge)),
			com,
			nul,
		},
		Nullifier:  nul,
		Commitment: com,
	}, nil
}

func buildJurisdiction(cred *models.Credential, req Request, secret, nul kyber.Scalar) (*Assignment, error) {
	if len(req.AllowedRegions) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "allowed regions required")
	}
	if len(req.AllowedRegions) > MaxAllowedRegions {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("at most %d allowed regions, got %d", MaxAllowedRegions, len(req.AllowedRegions)))
	}

	member, err := holderRegions(cred)
	if err != nil {
		return nil, err
	}

	// Fixed layout: 16 region-hash slots zero-padded on the right, then the
	// true region count, then the nullifier.
	public := make([]kyber.Scalar, 0, MaxAllowedRegions+2)
	var membership kyber.Scalar
	for _, region := range req.AllowedRegions {
		norm := strings.ToUpper(strings.TrimSpace(region))
		if norm == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "empty region in allow list")
		}
		h := zk.HashToField("privid/region/v1", []byte(norm))
		public = append(public, h)
		if _, ok := member[norm]; ok && membership == nil {
			membership = h.Clone()
		}
	}
	if membership == nil {
		return nil, dErrors.New(dErrors.CodeRejected, "credential does not place holder in any allowed region")
	}
	for len(public) < MaxAllowedRegions {
		public = append(public, zk.Suite().G1().Scalar().Zero())
	}
	public = append(public, zk.ScalarFromUint64(uint64(len(req.AllowedRegions))), nul)

	return &Assignment{
		ProofType: ProofJurisdiction,
		CircuitID: CircuitJurisdiction,
		Private:   []kyber.Scalar{membership, secret},
		Public:    public,
		Nullifier: nul,
	}, nil
}

// holderRegions derives the region tags a jurisdiction credential places the
// holder in. Tags, not countries: the credential never carried the country.
func holderRegions(cred *models.Credential) (map[string]struct{}, error) {
	us, err := claimBool(cred, "isUSPerson")
	if err != nil {
		return nil, err
	}
	eu, err := claimBool(cred, "isEUResident")
	if err != nil {
		return nil, err
	}
	restricted, err := claimBool(cred, "isRestrictedJurisdiction")
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	if us {
		out["US"] = struct{}{}
	}
	if eu {
		out["EU"] = struct{}{}
	}
	if !restricted {
		out["UNRESTRICTED"] = struct{}{}
	}
	return out, nil
}

func buildAntiSybil(cred *models.Credential, req Request, now time.Time, secret, nul kyber.Scalar) (*Assignment, error) {
	uniq, err := claimString(cred, "uniquenessHash")
	if err != nil {
		return nil, err
	}
	uniqBytes, err := hex.DecodeString(uniq)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "malformed uniqueness hash")
	}
	confidence, err := claimInt64(cred, "confidenceScore")
	if err != nil {
		return nil, err
	}
	if confidence < 0 || confidence > 100 {
		return nil, malformedClaim(cred, "confidenceScore")
	}
	if uint64(confidence) < req.RequiredConfidence {
		return nil, dErrors.New(dErrors.CodeRejected,
			fmt.Sprintf("attested confidence %d below required %d", confidence, req.RequiredConfidence))
	}
	signals, err := claimString(cred, "signalsDigest")
	if err != nil {
		return nil, err
	}
	signalBytes, err := hex.DecodeString(signals)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "malformed signals digest")
	}

	return &Assignment{
		ProofType: ProofAntiSybil,
		CircuitID: CircuitAntiSybil,
		Private: []kyber.Scalar{
			zk.HashToField("privid/witness/anti-sybil/v1", uniqBytes),
			zk.HashToField("privid/witness/anti-sybil/signals/v1", signalBytes),
			zk.ScalarFromUint64(uint64(confidence)),
			secret,
		},
		Public: []kyber.Scalar{
			zk.ScalarFromUint64(uint64(now.Unix())),
			zk.HashToField("privid/challenge/v1", req.ChallengeNonce),
			zk.ScalarFromUint64(req.RequiredConfidence),
			zk.ScalarFromUint64(req.NetworkEpoch),
		},
		Nullifier: nul,
	}, nil
}

func buildAccredited(cred *models.Credential, req Request, secret, nul kyber.Scalar) (*Assignment, error) {
	accredited, err := claimBool(cred, "accredited")
	if err != nil {
		return nil, err
	}
	netWorth, err := claimInt64(cred, "netWorth")
	if err != nil {
		return nil, err
	}
	if req.MinNetWorth < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "minimum net worth must be non-negative")
	}
	if !accredited {
		return nil, dErrors.New(dErrors.CodeRejected, "credential does not attest accreditation")
	}
	if netWorth < req.MinNetWorth {
		return nil, dErrors.New(dErrors.CodeRejected, "attested net worth below requested threshold")
	}

	salt, err := newSalt()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "wealth commitment salt")
	}
	var worthBytes [8]byte
	binary.BigEndian.PutUint64(worthBytes[:], uint64(netWorth))
	// The accreditation flag is committed alongside the net worth; it is
	// necessarily 1 here, rejection above handles the other case.
	com, err := commitment(secret, salt, worthBytes[:], []byte{1})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "wealth commitment")
	}
	saltScalar := zk.HashToField("privid/witness/salt/v1", salt)
	wipe(salt)

	return &Assignment{
		ProofType: ProofAccreditedInvestor,
		CircuitID: CircuitAccreditedInvestor,
		Private: []kyber.Scalar{
			zk.ScalarFromUint64(uint64(netWorth)),
			saltScalar,
			secret,
		},
		Public: []kyber.Scalar{
			zk.ScalarFromUint64(uint64(req.MinNetWorth)),
			com,
			nul,
		},
		Nullifier:  nul,
		Commitment: com,
	}, nil
}

// Claim accessors. Credentials round-trip through JSON, so numbers may
// arrive as float64 or json.Number depending on the path.

func claimBool(cred *models.Credential, key string) (bool, error) {
	v, ok := cred.Subject[key]
	if !ok {
		return false, missingClaim(cred, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, malformedClaim(cred, key)
	}
	return b, nil
}

func claimString(cred *models.Credential, key string) (string, error) {
	v, ok := cred.Subject[key]
	if !ok {
		return "", missingClaim(cred, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", malformedClaim(cred, key)
	}
	return s, nil
}

func claimInt64(cred *models.Credential, key string) (int64, error) {
	v, ok := cred.Subject[key]
	if !ok {
		return 0, missingClaim(cred, key)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, malformedClaim(cred, key)
		}
		return i, nil
	default:
		return 0, malformedClaim(cred, key)
	}
}

func missingClaim(cred *models.Credential, key string) error {
	return dErrors.New(dErrors.CodeInvalidInput,
		fmt.Sprintf("credential %s missing claim %q", cred.ID, key))
}

func malformedClaim(cred *models.Credential, key string) error {
	return dErrors.New(dErrors.CodeInvalidInput,
		fmt.Sprintf("credential %s claim %q has unexpected shape", cred.ID, key))
}
