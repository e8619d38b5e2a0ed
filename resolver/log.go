package resolver

import "github.com/btcsuite/btclog"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by the resolver registry.
func UseLogger(logger btclog.Logger) {
	log = logger
}
