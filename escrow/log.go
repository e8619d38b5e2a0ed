package escrow

import "github.com/btcsuite/btclog"

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger used by escrow's claim/refund
// paths. Called once during swapd startup before any Book is driven.
func UseLogger(logger btclog.Logger) {
	log = logger
}
