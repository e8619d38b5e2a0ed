// Package resolver implements the resolver network (C5): stake lifecycle,
// the authorization gate, and reputation accounting.
package resolver

import (
	"math/big"
	"sync"
	"time"

	"github.com/meshswap/relayer/errkind"
)

// Reputation bounds and bump schedule (§4.5). ReputationFloor is the
// domain floor reputation can never drop below; Policy.MinReputation is
// the separate, configurable authorization threshold (§4.5's
// MIN_REPUTATION) a resolver must clear to stay authorized.
const (
	ReputationFloor = 0
	MaxReputation   = 1000

	bumpBase        = 1
	bumpOneUnit     = 2
	bumpTenUnits    = 5
	bumpAboveParity = 3
)

var (
	ErrNotRegistered    = errkind.New(errkind.Validation, "resolver: not registered")
	ErrAlreadyRegistered = errkind.New(errkind.Validation, "resolver: already registered")
	ErrStakeOutOfBounds = errkind.New(errkind.Validation, "resolver: stake outside [MIN_STAKE, MAX_STAKE]")
	ErrNotAdmin         = errkind.New(errkind.Auth, "resolver: caller is not the admin")
)

// Status is the tagged-variant authorization predicate described in §9:
// {Unregistered, Registered, Penalized} with a single pure Authorized()
// check, rather than nested boolean conditions scattered across callers.
type Status struct {
	state         state
	stake         *big.Int
	reputation    int
	authorized    bool
	minReputation int
}

type state int

const (
	stateUnregistered state = iota
	stateRegistered
	statePenalized
)

// Authorized reports whether this resolver may fill orders right now: the
// authorized flag must be set, the state must not have fallen to
// Penalized, AND reputation must be at least the registry's configured
// MinReputation threshold.
func (s Status) Authorized() bool {
	return s.state == stateRegistered && s.authorized && s.reputation >= s.minReputation
}

// Resolver is one entry in the registry.
type Resolver struct {
	Address     string
	Stake       *big.Int
	Reputation  int
	Authorized  bool
	TotalFills  int64
	TotalVolume *big.Int
	LastActive  time.Time
}

func (r *Resolver) status(minReputation int) Status {
	st := stateRegistered
	if r.Reputation < minReputation {
		st = statePenalized
	}
	return Status{state: st, stake: r.Stake, reputation: r.Reputation, authorized: r.Authorized, minReputation: minReputation}
}

// Policy bounds stake acceptance at registration time and sets the
// reputation authorization threshold.
type Policy struct {
	MinStake *big.Int
	MaxStake *big.Int

	// MinReputation is the §4.5 MIN_REPUTATION threshold: a resolver whose
	// reputation falls below it is Penalized and loses authorization,
	// independent of ReputationFloor (which just bounds the counter itself).
	MinReputation int
}

// Registry is the process-wide resolver network state, serialized by a
// single mutex. Authorize checks that its caller is the admin; the other
// mutators (Register, Unregister, RecordFill, ApplyPenalty,
// DistributeReward) take no caller and perform no caller check.
type Registry struct {
	mu       sync.RWMutex
	policy   Policy
	admin    string
	resolvers map[string]*Resolver
}

// NewRegistry constructs an empty Registry. admin is the address permitted
// to call Authorize.
func NewRegistry(admin string, policy Policy) *Registry {
	return &Registry{
		admin:     admin,
		policy:    policy,
		resolvers: make(map[string]*Resolver),
	}
}

func (g *Registry) checkStake(stake *big.Int) error {
	if stake == nil || stake.Sign() < 0 {
		return ErrStakeOutOfBounds
	}
	if g.policy.MinStake != nil && stake.Cmp(g.policy.MinStake) < 0 {
		return ErrStakeOutOfBounds
	}
	if g.policy.MaxStake != nil && stake.Cmp(g.policy.MaxStake) > 0 {
		return ErrStakeOutOfBounds
	}
	return nil
}

// Register stakes an amount for addr, creating its registry entry.
func (g *Registry) Register(addr string, stake *big.Int, now time.Time) (*Resolver, error) {
	if err := g.checkStake(stake); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.resolvers[addr]; ok {
		return nil, ErrAlreadyRegistered
	}
	r := &Resolver{
		Address:     addr,
		Stake:       new(big.Int).Set(stake),
		Reputation:  0,
		Authorized:  false,
		TotalVolume: big.NewInt(0),
		LastActive:  now,
	}
	g.resolvers[addr] = r
	cp := *r
	return &cp, nil
}

// RegisterWithNative is the native-asset variant accepting the stake value
// inline; it is otherwise identical to Register (§4.6 describes the same
// native-inline pattern for order creation).
func (g *Registry) RegisterWithNative(addr string, amount *big.Int, now time.Time) (*Resolver, error) {
	return g.Register(addr, amount, now)
}

// Unregister returns stake and accrued rewards and flags the entry
// unauthorized. Reward accounting is external to the registry (callers
// transfer Stake+reward themselves); Unregister just marks the state.
func (g *Registry) Unregister(addr string) (*Resolver, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.resolvers[addr]
	if !ok {
		return nil, ErrNotRegistered
	}
	r.Authorized = false
	cp := *r
	return &cp, nil
}

// Authorize is admin-only: it sets or clears the authorized flag.
func (g *Registry) Authorize(caller, addr string, flag bool) error {
	if caller != g.admin {
		return ErrNotAdmin
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.resolvers[addr]
	if !ok {
		return ErrNotRegistered
	}
	r.Authorized = flag
	return nil
}

// IsAuthorized implements escrow.Authorizer.
func (g *Registry) IsAuthorized(addr string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.resolvers[addr]
	if !ok {
		return false
	}
	return r.status(g.policy.MinReputation).Authorized()
}

// RecordFill is limit-order-protocol-only in spirit (callers outside
// orderbook should not call this); it bumps reputation and fill/volume
// counters per the §4.5 schedule, capping reputation at MaxReputation.
//
//	+1 base
//	+2 if amount >= oneNativeUnit
//	+5 if amount >= tenNativeUnits
//	+3 if rate > parity (parity == 1e18 fixed point)
func (g *Registry) RecordFill(addr string, amount *big.Int, rate *big.Int, oneNativeUnit *big.Int, parity *big.Int, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.resolvers[addr]
	if !ok {
		return ErrNotRegistered
	}

	bump := bumpBase
	tenUnits := new(big.Int).Mul(oneNativeUnit, big.NewInt(10))
	if amount.Cmp(tenUnits) >= 0 {
		bump += bumpTenUnits
	} else if amount.Cmp(oneNativeUnit) >= 0 {
		bump += bumpOneUnit
	}
	if rate != nil && parity != nil && rate.Cmp(parity) > 0 {
		bump += bumpAboveParity
	}

	r.Reputation += bump
	if r.Reputation > MaxReputation {
		r.Reputation = MaxReputation
	}
	r.TotalFills++
	r.TotalVolume = new(big.Int).Add(r.TotalVolume, amount)
	r.LastActive = now
	return nil
}

// ApplyPenalty subtracts amount from reputation, flooring the counter at
// ReputationFloor; falling below the policy's MinReputation threshold
// clears Authorized.
func (g *Registry) ApplyPenalty(addr string, amount int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.resolvers[addr]
	if !ok {
		return ErrNotRegistered
	}
	r.Reputation -= amount
	if r.Reputation < g.policy.MinReputation {
		r.Authorized = false
		log.Warnf("resolver %v penalized below MinReputation, authorization cleared", addr)
	}
	if r.Reputation < ReputationFloor {
		r.Reputation = ReputationFloor
	}
	return nil
}

// DistributeReward credits amount to the resolver's stake as an accrued
// reward. The actual fund transfer is a chain-level concern outside the
// registry's responsibility.
func (g *Registry) DistributeReward(addr string, amount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.resolvers[addr]
	if !ok {
		return ErrNotRegistered
	}
	r.Stake = new(big.Int).Add(r.Stake, amount)
	return nil
}

// Get returns a copy of the registry entry for addr.
func (g *Registry) Get(addr string) (*Resolver, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.resolvers[addr]
	if !ok {
		return nil, ErrNotRegistered
	}
	cp := *r
	return &cp, nil
}
