package blocks

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/container/trie"
	"github.com/sigcore-labs/beacon-core/encoding/bytesutil"
	"github.com/sigcore-labs/beacon-core/encoding/ssz"
)

// ProcessDeposits verifies and applies every deposit in block order:
// Merkle-proof membership against state.Eth1Data.DepositRoot, then either
// registers a new validator or credits an existing one's balance.
func ProcessDeposits(st *state.BeaconState, deposits []*consensusblocks.Deposit, skipMerkleProof bool) error {
	for i, d := range deposits {
		if err := processDeposit(st, d, skipMerkleProof); err != nil {
			return errors.Wrapf(err, "invalid deposit at index %d", i)
		}
	}
	return nil
}

func processDeposit(st *state.BeaconState, d *consensusblocks.Deposit, skipMerkleProof bool) error {
	if !skipMerkleProof {
		if err := verifyDepositProof(st, d); err != nil {
			return err
		}
	}
	st.Eth1DepositIndex++
	st.Cache().Invalidate(state.FieldEth1DepositIndex)

	for i, v := range st.Validators {
		if v.PublicKey == d.Data.PublicKey {
			increaseBalance(st, ssztypes.ValidatorIndex(i), d.Data.Amount)
			return nil
		}
	}

	cfg := params.BeaconConfig()
	v := &state.Validator{
		PublicKey:                  d.Data.PublicKey,
		WithdrawalCredentials:      d.Data.WithdrawalCredentials,
		ActivationEligibilityEpoch: cfg.FarFutureEpoch,
		ActivationEpoch:            cfg.FarFutureEpoch,
		ExitEpoch:                  cfg.FarFutureEpoch,
		WithdrawableEpoch:          cfg.FarFutureEpoch,
	}
	amount := d.Data.Amount
	effective := amount - (amount % cfg.EffectiveBalanceIncrement)
	if effective > cfg.MaxEffectiveBalance {
		effective = cfg.MaxEffectiveBalance
	}
	v.EffectiveBalance = intToGwei(effective)
	st.Validators = append(st.Validators, v)
	st.Balances = append(st.Balances, intToGwei(amount))
	if st.Version() >= state.Altair {
		st.PreviousEpochParticipation = append(st.PreviousEpochParticipation, 0)
		st.CurrentEpochParticipation = append(st.CurrentEpochParticipation, 0)
		st.InactivityScores = append(st.InactivityScores, 0)
	}
	st.Cache().Invalidate(state.FieldValidators)
	st.Cache().Invalidate(state.FieldBalances)
	return nil
}

func verifyDepositProof(st *state.BeaconState, d *consensusblocks.Deposit) error {
	leaf, err := depositDataRoot(d.Data)
	if err != nil {
		return err
	}
	root := trie.VerifyMerkleBranch(leaf, d.Proof, depositContractTreeDepth, st.Eth1DepositIndex, st.Eth1Data.DepositRoot)
	if !root {
		return errors.New("deposit merkle proof verification failed")
	}
	return nil
}

const depositContractTreeDepth = 32

func depositDataRoot(d *consensusblocks.DepositData) ([32]byte, error) {
	pub := bytesutil.ToBytes32(d.PublicKey[:32])
	cred := d.WithdrawalCredentials
	amount := bytesutil.Uint64ToBytesLittleEndian32(d.Amount)
	sigRoot := ssz.MerkleizeVector([][32]byte{
		bytesutil.ToBytes32(d.Signature[:32]),
		bytesutil.ToBytes32(d.Signature[32:64]),
		bytesutil.ToBytes32(d.Signature[64:]),
	}, 4)
	leaves := [][32]byte{pub, cred, amount, sigRoot}
	return ssz.MerkleizeVector(leaves, 4), nil
}

// intToGwei is a thin named conversion kept local to this file so the
// Gwei arithmetic above reads without repeated ssztypes.Gwei(...) casts.
func intToGwei(x uint64) ssztypes.Gwei { return ssztypes.Gwei(x) }
