package main

import (
	"github.com/btcsuite/btclog"

	"github.com/meshswap/relayer/build"
	"github.com/meshswap/relayer/coordinator"
	"github.com/meshswap/relayer/crosschain"
	"github.com/meshswap/relayer/escrow"
	"github.com/meshswap/relayer/orderbook"
	"github.com/meshswap/relayer/resolver"
	"github.com/meshswap/relayer/store"
)

// wireLoggers hands each package its own subsystem logger tagged with a
// short name, the same fan-out lnd's loadConfig does for every subsystem
// once the shared log backend is constructed.
func wireLoggers(w *build.LogWriter, level string) error {
	loggers := map[string]func(btclog.Logger){
		"ESCR": escrow.UseLogger,
		"ORDR": orderbook.UseLogger,
		"XCHN": crosschain.UseLogger,
		"RSLV": resolver.UseLogger,
		"STOR": store.UseLogger,
		"CORD": coordinator.UseLogger,
	}
	for tag, use := range loggers {
		l := w.SubLogger(tag)
		if err := build.SetLevel(l, level); err != nil {
			return err
		}
		use(l)
	}
	return nil
}
