package resolver_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/meshswap/relayer/resolver"
	"github.com/stretchr/testify/require"
)

func newRegistry() *resolver.Registry {
	return resolver.NewRegistry("admin", resolver.Policy{
		MinStake: big.NewInt(100),
		MaxStake: big.NewInt(1_000_000),
	})
}

func newRegistryWithMinReputation(minReputation int) *resolver.Registry {
	return resolver.NewRegistry("admin", resolver.Policy{
		MinStake:      big.NewInt(100),
		MaxStake:      big.NewInt(1_000_000),
		MinReputation: minReputation,
	})
}

func TestRegisterStakeBounds(t *testing.T) {
	g := newRegistry()
	_, err := g.Register("r1", big.NewInt(10), time.Now())
	require.ErrorIs(t, err, resolver.ErrStakeOutOfBounds)

	_, err = g.Register("r1", big.NewInt(500), time.Now())
	require.NoError(t, err)
}

func TestUnauthorizedUntilAdminFlag(t *testing.T) {
	g := newRegistry()
	_, err := g.Register("r1", big.NewInt(500), time.Now())
	require.NoError(t, err)
	require.False(t, g.IsAuthorized("r1"))

	require.ErrorIs(t, g.Authorize("not-admin", "r1", true), resolver.ErrNotAdmin)

	require.NoError(t, g.Authorize("admin", "r1", true))
	require.True(t, g.IsAuthorized("r1"))
}

func TestPenaltyClearsAuthorizationBelowMinReputation(t *testing.T) {
	g := newRegistry()
	_, err := g.Register("r1", big.NewInt(500), time.Now())
	require.NoError(t, err)
	require.NoError(t, g.Authorize("admin", "r1", true))

	oneUnit := big.NewInt(1_000_000_000_000_000_000)
	parity := big.NewInt(1_000_000_000_000_000_000)

	require.NoError(t, g.RecordFill("r1", oneUnit, parity, oneUnit, parity, time.Now()))
	r, err := g.Get("r1")
	require.NoError(t, err)
	require.Equal(t, 1+2, r.Reputation) // base + >=1 unit bump

	require.NoError(t, g.ApplyPenalty("r1", 1000))
	require.False(t, g.IsAuthorized("r1"))
}

// TestAuthorizationGatedByMinReputationScenarioS6 covers S6: a resolver
// with reputation MIN_REPUTATION-1 is never authorized, even with the
// admin flag set, distinguishing the configurable MinReputation threshold
// from the fixed ReputationFloor of 0.
func TestAuthorizationGatedByMinReputationScenarioS6(t *testing.T) {
	g := newRegistryWithMinReputation(1)
	_, err := g.Register("r1", big.NewInt(500), time.Now())
	require.NoError(t, err)
	require.NoError(t, g.Authorize("admin", "r1", true))

	// Fresh registration starts at reputation 0, MinReputation-1 here.
	require.False(t, g.IsAuthorized("r1"))

	oneUnit := big.NewInt(1_000_000_000_000_000_000)
	parity := oneUnit
	require.NoError(t, g.RecordFill("r1", oneUnit, parity, oneUnit, parity, time.Now()))

	r, err := g.Get("r1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, r.Reputation, 1)
	require.True(t, g.IsAuthorized("r1"))
}

func TestRecordFillReputationSchedule(t *testing.T) {
	g := newRegistry()
	_, err := g.Register("r1", big.NewInt(500), time.Now())
	require.NoError(t, err)

	oneUnit := big.NewInt(1_000_000_000_000_000_000)
	tenUnits := new(big.Int).Mul(oneUnit, big.NewInt(10))
	parity := oneUnit
	aboveParity := new(big.Int).Add(parity, big.NewInt(1))

	require.NoError(t, g.RecordFill("r1", tenUnits, aboveParity, oneUnit, parity, time.Now()))
	r, err := g.Get("r1")
	require.NoError(t, err)
	require.Equal(t, 1+5+3, r.Reputation)
	require.Equal(t, int64(1), r.TotalFills)
}

func TestReputationCapsAtMax(t *testing.T) {
	g := newRegistry()
	_, err := g.Register("r1", big.NewInt(500), time.Now())
	require.NoError(t, err)

	oneUnit := big.NewInt(1_000_000_000_000_000_000)
	tenUnits := new(big.Int).Mul(oneUnit, big.NewInt(10))
	parity := oneUnit
	for i := 0; i < 200; i++ {
		require.NoError(t, g.RecordFill("r1", tenUnits, parity, oneUnit, parity, time.Now()))
	}
	r, err := g.Get("r1")
	require.NoError(t, err)
	require.Equal(t, resolver.MaxReputation, r.Reputation)
}
