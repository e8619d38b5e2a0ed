// Command swapd is the cross-chain swap coordinator daemon (C8): it drives
// destination-escrow creation, preimage relay, and timeout cancellation for
// every order it observes, exposing a status/admin surface over gRPC.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"google.golang.org/grpc"

	"github.com/meshswap/relayer/build"
	"github.com/meshswap/relayer/chainclient"
	"github.com/meshswap/relayer/chainclient/fake"
	"github.com/meshswap/relayer/config"
	"github.com/meshswap/relayer/coordinator"
	"github.com/meshswap/relayer/crosschain"
	"github.com/meshswap/relayer/escrow"
	"github.com/meshswap/relayer/orderbook"
	"github.com/meshswap/relayer/resolver"
	signerfake "github.com/meshswap/relayer/signer/fake"
	"github.com/meshswap/relayer/statusrpc"
	"github.com/meshswap/relayer/store"
)

var shutdownChannel = make(chan struct{})

// swapdMain is the true entry point; nested under main() so deferred
// cleanups still run when it returns an error, mirroring the teacher's
// lndMain/main split.
func swapdMain() error {
	cfg, err := config.Load()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	logFile := filepath.Join(cfg.LogDir, "swapd.log")
	if cfg.NoFileLogging {
		logFile = ""
	}
	logWriter, err := build.NewLogWriter(logFile)
	if err != nil {
		return err
	}
	defer logWriter.Close()

	swapdLog := logWriter.SubLogger("SWAPD")
	if err := build.SetLevel(swapdLog, cfg.DebugLevel); err != nil {
		return err
	}
	if err := wireLoggers(logWriter, cfg.DebugLevel); err != nil {
		return err
	}

	swapdLog.Infof("swapd starting, data dir %v", cfg.DataDir)

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("unable to open swap database: %w", err)
	}
	defer db.Close()

	srcEscrows := escrow.NewBook("source", db.UsedPreimages(), nil, db.KV())
	dstEscrows := escrow.NewBook("dest", db.UsedPreimages(), nil, db.KV())
	for chain, book := range map[string]*escrow.Book{"source": srcEscrows, "dest": dstEscrows} {
		saved, err := db.KV().AllEscrows(chain)
		if err != nil {
			return fmt.Errorf("unable to load %v escrow snapshots: %w", chain, err)
		}
		for _, e := range saved {
			book.Restore(e)
		}
	}

	registry := resolver.NewRegistry("admin", resolver.Policy{
		MinStake:      big.NewInt(cfg.Resolver.MinStake),
		MaxStake:      big.NewInt(cfg.Resolver.MaxStake),
		MinReputation: cfg.Resolver.MinReputation,
	})
	orders := orderbook.NewBook(srcEscrows, registry)
	swaps := crosschain.NewBook(orders, srcEscrows, dstEscrows)

	journal := coordinator.NewJournal(db.Log())
	if err := journal.LoadFromLog(); err != nil {
		return fmt.Errorf("unable to replay swap journal: %w", err)
	}

	// No concrete EVM/Move chain client ships with swapd (§6's black-box
	// framing); the in-memory fakes stand in until one is wired.
	srcClient := fake.New("source")
	dstClient := fake.New("dest")
	srcSigner := signerfake.New(cfg.Source.SignerKey)
	dstSigner := signerfake.New(cfg.Dest.SignerKey)

	engine := coordinator.NewEngine(cfg.Workers, swaps, srcEscrows, dstEscrows, journal, srcClient, dstClient, srcSigner, dstSigner)
	engine.Backoff = coordinator.Backoff{Base: cfg.Retry.BaseDelay, Max: cfg.Retry.MaxDelay}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx, cfg.Workers)
	defer engine.Stop()

	if err := engine.Recover(ctx); err != nil {
		return fmt.Errorf("unable to recover coordinator state: %w", err)
	}

	go func() {
		srcFilter := chainclient.LogFilter{Chain: "source", Address: cfg.Source.ContractAddr}
		dstFilter := chainclient.LogFilter{Chain: "dest", Address: cfg.Dest.ContractAddr}
		if err := engine.Watch(ctx, srcFilter, dstFilter); err != nil && ctx.Err() == nil {
			swapdLog.Errorf("chain watch loop exited: %v", err)
		}
	}()
	go engine.RetryLoop(ctx, cfg.PollInterval)

	lis, err := net.Listen("tcp", cfg.StatusRPCListen)
	if err != nil {
		return fmt.Errorf("unable to listen on %v: %w", cfg.StatusRPCListen, err)
	}
	grpcServer := grpc.NewServer()
	rpcServer := newRPCServer(journal, engine, db.Log())
	if err := rpcServer.Start(); err != nil {
		return err
	}
	defer rpcServer.Stop()
	statusrpc.RegisterStatusServiceServer(grpcServer, rpcServer)

	go func() {
		swapdLog.Infof("status gRPC listening on %v", cfg.StatusRPCListen)
		if err := grpcServer.Serve(lis); err != nil {
			swapdLog.Errorf("status gRPC server exited: %v", err)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		close(shutdownChannel)
	}()

	<-shutdownChannel
	grpcServer.GracefulStop()
	swapdLog.Info("swapd shutdown complete")
	return nil
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := swapdMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
