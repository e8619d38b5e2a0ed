// Command swapcli is the admin control plane for swapd, mirroring lncli's
// shape: a urfave/cli app with a global --rpcserver flag and one command
// per statusrpc method.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/meshswap/relayer/statusrpc"
)

// Exit codes per §6's administrative CLI contract: 0 success, 2 bad
// arguments, 3 chain unreachable, 4 not found. Anything else (including a
// gRPC code with no mapping below) falls back to 1.
const (
	exitSuccess          = 0
	exitBadArguments     = 2
	exitChainUnreachable = 3
	exitNotFound         = 4
)

// argError marks a command's own validation failure (wrong arg count,
// unparseable seq) as a bad-argument exit, distinct from an error a gRPC
// call returned.
type argError struct{ error }

func badArgs(format string, args ...interface{}) error {
	return argError{fmt.Errorf(format, args...)}
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	if _, ok := err.(argError); ok {
		return exitBadArguments
	}
	st, ok := status.FromError(err)
	if !ok {
		return 1
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return exitBadArguments
	case codes.Unavailable:
		return exitChainUnreachable
	case codes.NotFound:
		return exitNotFound
	default:
		return 1
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[swapcli] %v\n", err)
	os.Exit(exitCodeFor(err))
}

func getClient(ctx *cli.Context) (statusrpc.Client, func()) {
	conn, err := grpc.Dial(ctx.GlobalString("rpcserver"), grpc.WithInsecure())
	if err != nil {
		fatal(err)
	}
	cleanUp := func() { conn.Close() }
	return statusrpc.NewClient(conn), cleanUp
}

func main() {
	app := cli.NewApp()
	app.Name = "swapcli"
	app.Version = "0.1"
	app.Usage = "control plane for the swap coordinator daemon (swapd)"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: "localhost:10090",
			Usage: "host:port of the swapd status RPC surface",
		},
	}
	app.Commands = []cli.Command{
		listOrdersCommand,
		showOrderCommand,
		forceCancelCommand,
		replayFromCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
