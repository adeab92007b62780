package dag

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/randao"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/signing"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/crypto/bls"
	"github.com/sigcore-labs/beacon-core/encoding/bytesutil"
	"github.com/sigcore-labs/beacon-core/encoding/ssz"
)

// NewBatchVerifier returns the production Verifier: it collects every BLS
// signature the block carries — proposer, RANDAO reveal, attestation
// aggregates, slashing evidence, voluntary exits and the sync aggregate —
// into one bls.SignatureSet and runs a single batched pairing check. The
// state transition then runs with its per-signature checks elided, so each
// pairing is paid exactly once per block.
func NewBatchVerifier() Verifier {
	return func(preState *state.BeaconState, signed *consensusblocks.SignedBeaconBlock) error {
		set := bls.NewSet()
		if err := collectBlockSet(set, preState, signed); err != nil {
			return err
		}
		ok, err := set.Verify()
		if err != nil {
			return errors.Wrap(err, "could not verify signature batch")
		}
		if !ok {
			return errors.New("block signature batch verification failed")
		}
		return nil
	}
}

// collectBlockSet appends every (signature, key, message) triple the block
// carries. preState must already sit at the block's slot so committees,
// proposer sampling and the fork version all match what the signers used.
func collectBlockSet(set *bls.SignatureSet, st *state.BeaconState, signed *consensusblocks.SignedBeaconBlock) error {
	blk := signed.Block
	cfg := params.BeaconConfig()
	forkVersion := st.ForkData.CurrentVersion

	if uint64(blk.ProposerIndex) >= uint64(len(st.Validators)) {
		return errors.Errorf("proposer index %d out of range", blk.ProposerIndex)
	}
	proposer := st.Validators[blk.ProposerIndex]
	proposerKey, err := bls.PublicKeyFromBytes(proposer.PublicKey[:])
	if err != nil {
		return errors.Wrap(err, "invalid proposer public key")
	}

	// Proposer signature over the block's signing root.
	blockRoot, err := blk.HashTreeRoot()
	if err != nil {
		return errors.Wrap(err, "could not hash block")
	}
	proposerDomain := signing.ComputeDomain(cfg.DomainBeaconProposer, &forkVersion, &st.GenesisValidatorsRoot)
	set.Add(signed.Signature[:], proposerKey, signing.ComputeSigningRoot(blockRoot, proposerDomain))

	// RANDAO reveal: the proposer's signature over the current epoch.
	randaoMsg := randao.SigningRoot(helpers.CurrentEpoch(st), st.GenesisValidatorsRoot, forkVersion)
	set.Add(blk.Body.RandaoReveal[:], proposerKey, randaoMsg)

	attesterDomain := signing.ComputeDomain(cfg.DomainBeaconAttester, &forkVersion, &st.GenesisValidatorsRoot)
	for i, att := range blk.Body.Attestations {
		if err := collectAttestation(set, st, att, attesterDomain); err != nil {
			return errors.Wrapf(err, "attestation at index %d", i)
		}
	}

	for i, slashing := range blk.Body.ProposerSlashings {
		if err := collectSignedHeader(set, st, slashing.Header1, proposerDomain); err != nil {
			return errors.Wrapf(err, "proposer slashing at index %d", i)
		}
		if err := collectSignedHeader(set, st, slashing.Header2, proposerDomain); err != nil {
			return errors.Wrapf(err, "proposer slashing at index %d", i)
		}
	}
	for i, slashing := range blk.Body.AttesterSlashings {
		if err := collectIndexedAttestation(set, st, slashing.Attestation1, attesterDomain); err != nil {
			return errors.Wrapf(err, "attester slashing at index %d", i)
		}
		if err := collectIndexedAttestation(set, st, slashing.Attestation2, attesterDomain); err != nil {
			return errors.Wrapf(err, "attester slashing at index %d", i)
		}
	}

	exitDomain := signing.ComputeDomain(cfg.DomainVoluntaryExit, &forkVersion, &st.GenesisValidatorsRoot)
	for i, exit := range blk.Body.VoluntaryExits {
		if err := collectVoluntaryExit(set, st, exit, exitDomain); err != nil {
			return errors.Wrapf(err, "voluntary exit at index %d", i)
		}
	}

	if blk.Version >= consensusblocks.Altair {
		if err := collectSyncAggregate(set, st, blk, forkVersion); err != nil {
			return err
		}
	}
	return nil
}

func collectAttestation(set *bls.SignatureSet, st *state.BeaconState, att *consensusblocks.Attestation, domain [32]byte) error {
	committee, err := helpers.BeaconCommittee(st, att.Data.Slot, att.Data.CommitteeIndex)
	if err != nil {
		return errors.Wrap(err, "could not compute committee")
	}
	var keys []bls.PublicKey
	for i, idx := range committee {
		if !bitAt(att.AggregationBits, uint(i)) {
			continue
		}
		k, err := bls.PublicKeyFromBytes(st.Validators[idx].PublicKey[:])
		if err != nil {
			return errors.Wrapf(err, "invalid attester public key %d", idx)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return errors.New("attestation has no participating validators")
	}
	aggKey, err := bls.AggregatePublicKeys(keys)
	if err != nil {
		return err
	}
	dataRoot, err := att.Data.HashTreeRoot()
	if err != nil {
		return err
	}
	set.Add(att.Signature[:], aggKey, signing.ComputeSigningRoot(dataRoot, domain))
	return nil
}

func collectIndexedAttestation(set *bls.SignatureSet, st *state.BeaconState, att *consensusblocks.IndexedAttestation, domain [32]byte) error {
	if len(att.AttestingIndices) == 0 {
		return errors.New("indexed attestation has no attesting indices")
	}
	keys := make([]bls.PublicKey, 0, len(att.AttestingIndices))
	for _, idx := range att.AttestingIndices {
		if err := helpers.ValidateValidatorIndex(st, idx); err != nil {
			return err
		}
		k, err := bls.PublicKeyFromBytes(st.Validators[idx].PublicKey[:])
		if err != nil {
			return errors.Wrapf(err, "invalid attester public key %d", idx)
		}
		keys = append(keys, k)
	}
	aggKey, err := bls.AggregatePublicKeys(keys)
	if err != nil {
		return err
	}
	dataRoot, err := att.Data.HashTreeRoot()
	if err != nil {
		return err
	}
	set.Add(att.Signature[:], aggKey, signing.ComputeSigningRoot(dataRoot, domain))
	return nil
}

func collectSignedHeader(set *bls.SignatureSet, st *state.BeaconState, h *consensusblocks.SignedBeaconBlockHeader, domain [32]byte) error {
	if err := helpers.ValidateValidatorIndex(st, h.Header.ProposerIndex); err != nil {
		return err
	}
	key, err := bls.PublicKeyFromBytes(st.Validators[h.Header.ProposerIndex].PublicKey[:])
	if err != nil {
		return errors.Wrap(err, "invalid proposer public key")
	}
	headerRoot, err := h.Header.HashTreeRoot()
	if err != nil {
		return err
	}
	set.Add(h.Signature[:], key, signing.ComputeSigningRoot(headerRoot, domain))
	return nil
}

func collectVoluntaryExit(set *bls.SignatureSet, st *state.BeaconState, exit *consensusblocks.SignedVoluntaryExit, domain [32]byte) error {
	if err := helpers.ValidateValidatorIndex(st, exit.Exit.ValidatorIndex); err != nil {
		return err
	}
	key, err := bls.PublicKeyFromBytes(st.Validators[exit.Exit.ValidatorIndex].PublicKey[:])
	if err != nil {
		return errors.Wrap(err, "invalid validator public key")
	}
	epochRoot := bytesutil.Uint64ToBytesLittleEndian32(uint64(exit.Exit.Epoch))
	idxRoot := bytesutil.Uint64ToBytesLittleEndian32(uint64(exit.Exit.ValidatorIndex))
	exitRoot := ssz.MerkleizeVector([][32]byte{epochRoot, idxRoot}, 2)
	set.Add(exit.Signature[:], key, signing.ComputeSigningRoot(exitRoot, domain))
	return nil
}

// collectSyncAggregate adds the sync committee's aggregate signature over
// the previous slot's block root, which for a head block is its own parent
// root. An all-zero participation bitvector contributes nothing.
func collectSyncAggregate(set *bls.SignatureSet, st *state.BeaconState, blk *consensusblocks.BeaconBlock, forkVersion [4]byte) error {
	agg := blk.Body.SyncAggregate
	if agg == nil || st.CurrentSyncCommittee == nil {
		return nil
	}
	var keys []bls.PublicKey
	for i, pub := range st.CurrentSyncCommittee.Pubkeys {
		if !bitAt(agg.SyncCommitteeBits, uint(i)) {
			continue
		}
		k, err := bls.PublicKeyFromBytes(pub[:])
		if err != nil {
			return errors.Wrapf(err, "invalid sync committee public key at index %d", i)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil
	}
	aggKey, err := bls.AggregatePublicKeys(keys)
	if err != nil {
		return err
	}
	cfg := params.BeaconConfig()
	domain := signing.ComputeDomain(cfg.DomainSyncCommittee, &forkVersion, &st.GenesisValidatorsRoot)
	set.Add(agg.SyncCommitteeSignature[:], aggKey, signing.ComputeSigningRoot(blk.ParentRoot, domain))
	return nil
}

func bitAt(bits []byte, i uint) bool {
	if i/8 >= uint(len(bits)) {
		return false
	}
	return bits[i/8]&(1<<(i%8)) != 0
}

// NoopVerifier trusts the block's signatures, used for blocks already
// verified upstream (gossip validation) and by tests.
func NoopVerifier() Verifier {
	return func(_ *state.BeaconState, _ *consensusblocks.SignedBeaconBlock) error {
		return nil
	}
}
