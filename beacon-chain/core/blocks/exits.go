package blocks

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/signing"
	"github.com/sigcore-labs/beacon-core/crypto/bls"
	"github.com/sigcore-labs/beacon-core/encoding/bytesutil"
	"github.com/sigcore-labs/beacon-core/encoding/ssz"
)

// ProcessVoluntaryExits applies every voluntary exit in block order.
func ProcessVoluntaryExits(st *state.BeaconState, exits []*consensusblocks.SignedVoluntaryExit, skipBLS bool) error {
	for i, e := range exits {
		if err := verifyVoluntaryExit(st, e, skipBLS); err != nil {
			return errors.Wrapf(err, "invalid voluntary exit at index %d", i)
		}
		if _, err := initiateExit(st, e.Exit.ValidatorIndex); err != nil {
			return err
		}
	}
	return nil
}

func verifyVoluntaryExit(st *state.BeaconState, e *consensusblocks.SignedVoluntaryExit, skipBLS bool) error {
	cfg := params.BeaconConfig()
	if err := helpers.ValidateValidatorIndex(st, e.Exit.ValidatorIndex); err != nil {
		return err
	}
	v := st.Validators[e.Exit.ValidatorIndex]
	currentEpoch := helpers.CurrentEpoch(st)
	if !v.IsActive(currentEpoch) {
		return errors.New("validator is not active")
	}
	if v.ExitEpoch != cfg.FarFutureEpoch {
		return errors.New("validator has already initiated exit")
	}
	if currentEpoch < e.Exit.Epoch {
		return errors.New("voluntary exit epoch is in the future")
	}
	activationEligible := v.ActivationEpoch.Add(uint64(cfg.ShardCommitteePeriod))
	if currentEpoch < activationEligible {
		return errors.New("validator has not served minimum shard committee period")
	}
	if skipBLS {
		return nil
	}
	forkVersion := st.ForkData.CurrentVersion
	domain := signing.ComputeDomain(cfg.DomainVoluntaryExit, &forkVersion, &st.GenesisValidatorsRoot)
	root, err := voluntaryExitRoot(e.Exit)
	if err != nil {
		return err
	}
	signingRoot := signing.ComputeSigningRoot(root, domain)
	pub, err := bls.PublicKeyFromBytes(v.PublicKey[:])
	if err != nil {
		return errors.Wrap(err, "invalid validator public key")
	}
	sig, err := bls.SignatureFromBytes(e.Signature[:])
	if err != nil {
		return errors.Wrap(err, "invalid voluntary exit signature")
	}
	if !bls.Verify(sig, signingRoot, pub) {
		return errors.New("voluntary exit signature verification failed")
	}
	return nil
}

func voluntaryExitRoot(e *consensusblocks.VoluntaryExit) ([32]byte, error) {
	epochRoot := bytesutil.Uint64ToBytesLittleEndian32(uint64(e.Epoch))
	idxRoot := bytesutil.Uint64ToBytesLittleEndian32(uint64(e.ValidatorIndex))
	return ssz.MerkleizeVector([][32]byte{epochRoot, idxRoot}, 2), nil
}
