// Package randao verifies a block's RANDAO reveal against the proposer's
// public key and rotates the state's randao mix. It lives apart from
// core/blocks because fork choice and validator duties need the signing
// root computation without the rest of the block machinery.
package randao

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	"github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/crypto/bls"
	"github.com/sigcore-labs/beacon-core/crypto/hash"
)

// SigningRoot returns the message a proposer's RANDAO reveal signs: the
// hash tree root of the current epoch number, domain-separated by
// DomainRandao.
func SigningRoot(epoch primitives.Epoch, genesisValidatorsRoot [32]byte, forkVersion [4]byte) [32]byte {
	cfg := params.BeaconConfig()
	domain := computeDomain(cfg.DomainRandao, forkVersion, genesisValidatorsRoot)
	var epochChunk [32]byte
	binary.LittleEndian.PutUint64(epochChunk[:8], uint64(epoch))
	buf := make([]byte, 64)
	copy(buf[:32], epochChunk[:])
	copy(buf[32:], domain[:])
	return hash.Hash(buf)
}

func computeDomain(domainType [4]byte, forkVersion [4]byte, genesisValidatorsRoot [32]byte) [32]byte {
	var versionChunk [32]byte
	copy(versionChunk[:4], forkVersion[:])
	buf := make([]byte, 64)
	copy(buf[:32], versionChunk[:])
	copy(buf[32:], genesisValidatorsRoot[:])
	forkDataRoot := hash.Hash(buf)
	var out [32]byte
	copy(out[:4], domainType[:])
	copy(out[4:], forkDataRoot[:28])
	return out
}

// VerifyAndUpdate checks reveal against proposer's public key and, on
// success, mixes reveal into the current epoch's randao-mix slot. skipBLS
// corresponds to the state-transition skip-BLS flag: when set the
// signature check is elided but the mix still rotates, so skipping
// signatures only ever accepts strictly more blocks, never different
// states.
func VerifyAndUpdate(st *state.BeaconState, epoch primitives.Epoch, proposerPubKey [48]byte, reveal [96]byte, skipBLS bool) error {
	if !skipBLS {
		msg := SigningRoot(epoch, st.GenesisValidatorsRoot, st.ForkData.CurrentVersion)
		pub, err := bls.PublicKeyFromBytes(proposerPubKey[:])
		if err != nil {
			return errors.Wrap(err, "invalid proposer public key")
		}
		sig, err := bls.SignatureFromBytes(reveal[:])
		if err != nil {
			return errors.Wrap(err, "invalid randao reveal signature")
		}
		if !bls.Verify(sig, msg, pub) {
			return errors.New("randao reveal signature verification failed")
		}
	}
	mix := mixRandao(currentMix(st, epoch), reveal)
	idx := uint64(epoch) % uint64(params.BeaconConfig().EpochsPerHistoricalVector)
	st.RandaoMixes[idx] = mix
	st.Cache().Invalidate(state.FieldRandaoMixes)
	return nil
}

func currentMix(st *state.BeaconState, epoch primitives.Epoch) [32]byte {
	idx := uint64(epoch) % uint64(params.BeaconConfig().EpochsPerHistoricalVector)
	return st.RandaoMixes[idx]
}

func mixRandao(mix [32]byte, reveal [96]byte) [32]byte {
	revealHash := hash.Hash(reveal[:])
	buf := make([]byte, 64)
	copy(buf[:32], mix[:])
	copy(buf[32:], revealHash[:])
	return hash.Hash(buf)
}
