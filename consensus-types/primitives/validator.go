package primitives

import "github.com/pkg/errors"

// ValidatorIndex indexes into the state's validator registry. It is range
// checked on ingress by helpers.ValidateValidatorIndex, never by the type
// itself (the type has no access to state length).
type ValidatorIndex uint64

// CommitteeIndex identifies a committee within a slot's set of committees.
type CommitteeIndex uint64

// SubnetId identifies a gossip attestation subnet.
type SubnetId uint64

const maxCommitteesPerSlotSanity = 1 << 16
const maxSubnetSanity = 1 << 16

// InitCommitteeIndex validates value against a sane upper bound and
// returns a CommitteeIndex. Small-range newtypes get checked constructors
// so garbage wire input fails at the boundary, not deep in a committee
// lookup.
func InitCommitteeIndex(value uint64) (CommitteeIndex, error) {
	if value >= maxCommitteesPerSlotSanity {
		return 0, errors.Errorf("committee index %d exceeds sane upper bound", value)
	}
	return CommitteeIndex(value), nil
}

// InitSubnetId validates value against a sane upper bound and returns a
// SubnetId.
func InitSubnetId(value uint64) (SubnetId, error) {
	if value >= maxSubnetSanity {
		return 0, errors.Errorf("subnet id %d exceeds sane upper bound", value)
	}
	return SubnetId(value), nil
}
