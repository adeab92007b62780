// Package bls wraps BLS12-381 signature verification used to authenticate
// proposer signatures, RANDAO reveals, and aggregate attestations/sync
// committee contributions. It is backed by supranational/blst and exposes
// only the narrow surface the state transition and block processor need:
// single and batch verify.
package bls

import (
	"crypto/rand"
	"sync"

	"github.com/pkg/errors"
	fieldparams "github.com/sigcore-labs/beacon-core/config/fieldparams"
	blst "github.com/supranational/blst/bindings/go"
)

const randBitsEntropy = 64

// PublicKey is a deserialized, subgroup-checked BLS12-381 G1 public key.
type PublicKey struct {
	p *blst.P1Affine
}

// Signature is a deserialized, subgroup-checked BLS12-381 G2 signature.
type Signature struct {
	s *blst.P2Affine
}

var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSZ_RO_POP_")

// PublicKeyFromBytes deserializes and subgroup-checks a compressed 48-byte
// public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != fieldparams.BLSPubkeyLength {
		return PublicKey{}, errors.Errorf("public key must be %d bytes, got %d", fieldparams.BLSPubkeyLength, len(b))
	}
	p := new(blst.P1Affine).Uncompress(b)
	if p == nil || !p.KeyValidate() {
		return PublicKey{}, errors.New("invalid public key")
	}
	return PublicKey{p: p}, nil
}

// Copy returns a value copy of the public key.
func (p PublicKey) Copy() PublicKey {
	cpy := *p.p
	return PublicKey{p: &cpy}
}

// Marshal returns the 48-byte compressed encoding of p.
func (p PublicKey) Marshal() []byte {
	return p.p.Compress()
}

// SignatureFromBytes deserializes and subgroup-checks a compressed 96-byte
// signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != fieldparams.BLSSignatureLength {
		return Signature{}, errors.Errorf("signature must be %d bytes, got %d", fieldparams.BLSSignatureLength, len(b))
	}
	s := new(blst.P2Affine).Uncompress(b)
	if s == nil || !s.SigValidate(true) {
		return Signature{}, errors.New("invalid signature")
	}
	return Signature{s: s}, nil
}

// Verify checks sig against msg under pub. Used for single-signature checks
// such as a voluntary exit or the RANDAO reveal.
func Verify(sig Signature, msg [32]byte, pub PublicKey) bool {
	return sig.s.Verify(true, pub.p, true, msg[:], dst)
}

// AggregatePublicKeys folds keys into a single G1 point, the verification
// key an aggregate signature over one shared message verifies against.
func AggregatePublicKeys(keys []PublicKey) (PublicKey, error) {
	if len(keys) == 0 {
		return PublicKey{}, errors.New("no public keys to aggregate")
	}
	affines := make([]*blst.P1Affine, len(keys))
	for i, k := range keys {
		if k.p == nil {
			return PublicKey{}, errors.Errorf("nil public key at index %d", i)
		}
		affines[i] = k.p
	}
	agg := new(blst.P1Aggregate)
	// Every key was subgroup-checked on deserialization, so the group check
	// can be skipped here.
	if !agg.Aggregate(affines, false) {
		return PublicKey{}, errors.New("could not aggregate public keys")
	}
	return PublicKey{p: agg.ToAffine()}, nil
}

// SignatureSet is an accumulation of (signature, public key, message)
// triples verified together with one batch pairing check, the way
// crypto/bls.SignatureSet batches a block's proposer signature, RANDAO, and
// every contained operation signature into a single verification call.
type SignatureSet struct {
	Signatures [][]byte
	PublicKeys []PublicKey
	Messages   [][32]byte
}

// NewSet returns an empty signature set.
func NewSet() *SignatureSet {
	return &SignatureSet{}
}

// Join appends other's entries onto s and returns s for chaining.
func (s *SignatureSet) Join(other *SignatureSet) *SignatureSet {
	s.Signatures = append(s.Signatures, other.Signatures...)
	s.PublicKeys = append(s.PublicKeys, other.PublicKeys...)
	s.Messages = append(s.Messages, other.Messages...)
	return s
}

// Add appends a single (signature, public key, message) triple.
func (s *SignatureSet) Add(sig []byte, pub PublicKey, msg [32]byte) {
	s.Signatures = append(s.Signatures, sig)
	s.PublicKeys = append(s.PublicKeys, pub)
	s.Messages = append(s.Messages, msg)
}

// Verify batch-verifies every triple in the set with a single pairing check,
// returning false (not an error) if any one signature is invalid. Callers
// that need to know *which* signature failed must fall back to verifying
// individually.
func (s *SignatureSet) Verify() (bool, error) {
	if len(s.Signatures) == 0 {
		return true, nil
	}
	sigs := make([]*blst.P2Affine, len(s.Signatures))
	for i, raw := range s.Signatures {
		sig, err := SignatureFromBytes(raw)
		if err != nil {
			return false, errors.Wrapf(err, "invalid signature at index %d", i)
		}
		sigs[i] = sig.s
	}
	pubs := make([]*blst.P1Affine, len(s.PublicKeys))
	for i, p := range s.PublicKeys {
		pubs[i] = p.p
	}
	msgs := make([]blst.Message, len(s.Messages))
	for i, m := range s.Messages {
		msgs[i] = m[:]
	}
	randLock := new(sync.Mutex)
	randFn := func(scalar *blst.Scalar) {
		var rbytes [32]byte
		randLock.Lock()
		_, _ = rand.Read(rbytes[:])
		randLock.Unlock()
		// Protect against the generator returning 0.
		rbytes[len(rbytes)-1] |= 0x01
		scalar.FromBEndian(rbytes[:])
	}
	return new(blst.P2Affine).MultipleAggregateVerify(sigs, true, pubs, false, msgs, dst, randFn, randBitsEntropy), nil
}
