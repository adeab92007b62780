package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDomainLayout(t *testing.T) {
	domainType := [4]byte{0x02, 0x00, 0x00, 0x00}
	forkVersion := [4]byte{0x01, 0x00, 0x00, 0x00}
	gvr := [32]byte{0x42}

	domain := ComputeDomain(domainType, &forkVersion, &gvr)
	assert.Equal(t, domainType[:], domain[:4], "domain type occupies the first four bytes")

	forkDataRoot := ComputeForkDataRoot(forkVersion, gvr)
	assert.Equal(t, forkDataRoot[:28], domain[4:], "fork data root fills the remainder")
}

func TestComputeForkDigestIsPrefix(t *testing.T) {
	forkVersion := [4]byte{0x01, 0x00, 0x00, 0x00}
	gvr := [32]byte{0x42}
	digest := ComputeForkDigest(forkVersion, gvr)
	root := ComputeForkDataRoot(forkVersion, gvr)
	assert.Equal(t, root[:4], digest[:])
}

func TestSigningRootMixesDomain(t *testing.T) {
	obj := [32]byte{0x01}
	d1 := [32]byte{0x02}
	d2 := [32]byte{0x03}
	assert.NotEqual(t, ComputeSigningRoot(obj, d1), ComputeSigningRoot(obj, d2),
		"different domains must produce different signing roots")
	assert.Equal(t, ComputeSigningRoot(obj, d1), ComputeSigningRoot(obj, d1))
}
