package blocks

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/signing"
	"github.com/sigcore-labs/beacon-core/crypto/bls"
)

func attestationDataRoot(data *consensusblocks.AttestationData) ([32]byte, error) {
	return data.HashTreeRoot()
}

// verifyAggregate checks sig against objectRoot under the aggregate public
// key implied by pubkeys (one aggregated BLS verification per attestation,
// mirroring crypto/bls.SignatureSet's batching but for a single aggregate
// signature with many signers sharing one message).
func verifyAggregate(st *state.BeaconState, objectRoot [32]byte, targetEpoch ssztypes.Epoch, pubkeys [][]byte, sig [96]byte) error {
	cfg := params.BeaconConfig()
	forkVersion := st.ForkData.CurrentVersion
	domain := signing.ComputeDomain(cfg.DomainBeaconAttester, &forkVersion, &st.GenesisValidatorsRoot)
	signingRoot := signing.ComputeSigningRoot(objectRoot, domain)

	s, err := bls.SignatureFromBytes(sig[:])
	if err != nil {
		return errors.Wrap(err, "invalid aggregate signature")
	}
	aggPub, err := aggregatePublicKeys(pubkeys)
	if err != nil {
		return err
	}
	if !bls.Verify(s, signingRoot, aggPub) {
		return errors.New("aggregate signature verification failed")
	}
	return nil
}

// aggregatePublicKeys deserializes each signer's key and folds them into
// the single G1 point the aggregate signature verifies against.
func aggregatePublicKeys(pubkeys [][]byte) (bls.PublicKey, error) {
	if len(pubkeys) == 0 {
		return bls.PublicKey{}, errors.New("no public keys to aggregate")
	}
	keys := make([]bls.PublicKey, len(pubkeys))
	for i, raw := range pubkeys {
		k, err := bls.PublicKeyFromBytes(raw)
		if err != nil {
			return bls.PublicKey{}, errors.Wrapf(err, "invalid public key at index %d", i)
		}
		keys[i] = k
	}
	return bls.AggregatePublicKeys(keys)
}
