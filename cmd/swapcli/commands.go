package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/meshswap/relayer/statusrpc"
)

func printJSON(resp interface{}) {
	b, err := json.Marshal(resp)
	if err != nil {
		fatal(err)
	}

	var out bytes.Buffer
	json.Indent(&out, b, "", "\t")
	out.WriteTo(os.Stdout)
	fmt.Println()
}

var listOrdersCommand = cli.Command{
	Name:  "list-orders",
	Usage: "list every order the coordinator has a journal entry for",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "state",
			Usage: "only list orders in this journal state (e.g. completed, abandoned)",
		},
	},
	Action: listOrders,
}

func listOrders(ctx *cli.Context) error {
	client, cleanUp := getClient(ctx)
	defer cleanUp()

	req := &statusrpc.ListOrdersRequest{State: ctx.String("state")}
	resp, err := client.ListOrders(context.Background(), req)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

var showOrderCommand = cli.Command{
	Name:      "show-order",
	Usage:     "show the journal entry for a single order",
	ArgsUsage: "order-hash",
	Action:    showOrder,
}

func showOrder(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return badArgs("swapcli: show-order requires exactly one order-hash argument")
	}
	client, cleanUp := getClient(ctx)
	defer cleanUp()

	req := &statusrpc.ShowOrderRequest{OrderHash: ctx.Args().First()}
	resp, err := client.ShowOrder(context.Background(), req)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

var forceCancelCommand = cli.Command{
	Name:      "force-cancel",
	Usage:     "drive the cancellation cascade for an order ahead of its own retry schedule",
	ArgsUsage: "order-hash",
	Action:    forceCancel,
}

func forceCancel(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return badArgs("swapcli: force-cancel requires exactly one order-hash argument")
	}
	client, cleanUp := getClient(ctx)
	defer cleanUp()

	req := &statusrpc.ForceCancelRequest{OrderHash: ctx.Args().First()}
	resp, err := client.ForceCancel(context.Background(), req)
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

var replayFromCommand = cli.Command{
	Name:      "replay-from",
	Usage:     "dump every journal event from a given sequence number onward",
	ArgsUsage: "seq",
	Action:    replayFrom,
}

func replayFrom(ctx *cli.Context) error {
	var seq uint64
	if ctx.NArg() == 1 {
		if _, err := fmt.Sscanf(ctx.Args().First(), "%d", &seq); err != nil {
			return badArgs("swapcli: invalid seq %q: %v", ctx.Args().First(), err)
		}
	} else if ctx.NArg() > 1 {
		return badArgs("swapcli: replay-from takes at most one seq argument")
	}

	client, cleanUp := getClient(ctx)
	defer cleanUp()

	resp, err := client.ReplayFrom(context.Background(), &statusrpc.ReplayFromRequest{Seq: seq})
	if err != nil {
		return err
	}
	printJSON(resp)
	return nil
}
