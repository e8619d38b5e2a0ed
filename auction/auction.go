// Package auction implements the Dutch-auction pricing engine (C4): a
// monotonically non-increasing rate function over [start, end], plus
// advisory bid metadata that never feeds back into the rate.
package auction

import (
	"math/big"
	"time"
)

// Scale is the fixed-point denominator for rate arithmetic (18 decimals).
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Policy bounds on auction duration (§4.4).
const (
	MinDuration = 5 * time.Minute
	MaxDuration = 24 * time.Hour
)

// Config is the (start, end, start_rate, end_rate) tuple for one order's
// auction. Rates are 18-decimal fixed point.
type Config struct {
	Start     int64
	End       int64
	StartRate *big.Int
	EndRate   *big.Int
}

// Bid is advisory bid metadata: it updates "highest bid" bookkeeping and a
// last-bid timestamp but never alters RateAt.
type Bid struct {
	Resolver string
	Rate     *big.Int
	At       int64
}

// Auction is the live state for one order's Dutch auction.
type Auction struct {
	Config    Config
	HighBid   *Bid
	LastBidAt int64
}

// Validate enforces §4.4's policy: start_rate strictly greater than
// end_rate, and duration bounded to [MinDuration, MaxDuration].
func (c Config) Validate() error {
	if c.StartRate == nil || c.EndRate == nil {
		return errConfig("start_rate and end_rate are required")
	}
	if c.StartRate.Cmp(c.EndRate) <= 0 {
		return errConfig("start_rate must be strictly greater than end_rate")
	}
	if c.End <= c.Start {
		return errConfig("auction end must be after auction start")
	}
	dur := time.Duration(c.End-c.Start) * time.Second
	if dur < MinDuration {
		return errConfig("auction duration below MIN_AUCTION_DURATION")
	}
	if dur > MaxDuration {
		return errConfig("auction duration above MAX_AUCTION_DURATION")
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }
func errConfig(msg string) error    { return configError("auction: " + msg) }

// Open validates cfg and returns a fresh Auction. Only the limit-order
// protocol may call Open (§4.4's "only the limit-order protocol may
// initialize or cancel auctions" is enforced by orderbook, which is the
// only caller of this constructor in the wiring).
func Open(cfg Config) (*Auction, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Auction{Config: cfg}, nil
}

// RateAt computes the current accepted rate at time now, using floor-
// rounded integer math over the 18-decimal fixed point representation:
//
//	now <  start: start_rate
//	now >= end:   end_rate
//	otherwise:    start_rate - (start_rate-end_rate)*(now-start)/(end-start)
func (a *Auction) RateAt(now int64) *big.Int {
	return RateAt(a.Config, now)
}

// RateAt is the free-function form, usable without an Auction value (e.g.
// by orderbook.Fill, which must re-derive the rate fresh at fill time and
// never trust a cached/bid-influenced value).
func RateAt(cfg Config, now int64) *big.Int {
	switch {
	case now < cfg.Start:
		return new(big.Int).Set(cfg.StartRate)
	case now >= cfg.End:
		return new(big.Int).Set(cfg.EndRate)
	}

	elapsed := big.NewInt(now - cfg.Start)
	span := big.NewInt(cfg.End - cfg.Start)
	drop := new(big.Int).Sub(cfg.StartRate, cfg.EndRate)

	num := new(big.Int).Mul(drop, elapsed)
	delta := new(big.Int).Div(num, span) // floor division (both operands positive)

	return new(big.Int).Sub(cfg.StartRate, delta)
}

// RecordBid updates advisory bid metadata only. It never influences RateAt.
func (a *Auction) RecordBid(resolver string, rate *big.Int, now int64) {
	if a.HighBid == nil || rate.Cmp(a.HighBid.Rate) > 0 {
		a.HighBid = &Bid{Resolver: resolver, Rate: new(big.Int).Set(rate), At: now}
	}
	a.LastBidAt = now
}
