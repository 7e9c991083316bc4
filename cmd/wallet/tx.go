package main

import (
	"fmt"

	"github.com/ironbelly/walletd/internal/core/application"
	"github.com/ironbelly/walletd/pkg/coinselect"
	"github.com/ironbelly/walletd/pkg/slate"
	"github.com/urfave/cli/v2"
)

var amountFlag = &cli.StringFlag{
	Name:     "amount",
	Usage:    "the amount in grin",
	Required: true,
}

var postFlag = &cli.BoolFlag{
	Name:  "post",
	Usage: "broadcast the transaction once finalized",
}

var send = cli.Command{
	Name: "send",
	Usage: "send funds either to the foreign api of the receiver or by " +
		"writing the slate to be handed over",
	Flags: []cli.Flag{
		passwordFlag,
		amountFlag,
		strategyFlag,
		messageFlag,
		&cli.StringFlag{
			Name:  "dest",
			Usage: "the http(s) url of the receiver's foreign api",
		},
		postFlag,
		outFlag,
	},
	Action: sendAction,
}

var receive = cli.Command{
	Name:   "receive",
	Usage:  "sign a slate received from the sender",
	Flags:  []cli.Flag{passwordFlag, slateFlag, messageFlag, outFlag},
	Action: receiveAction,
}

var invoice = cli.Command{
	Name:   "invoice",
	Usage:  "request a payment",
	Flags:  []cli.Flag{passwordFlag, amountFlag, messageFlag, outFlag},
	Action: invoiceAction,
}

var pay = cli.Command{
	Name:   "pay",
	Usage:  "fund and sign an invoice",
	Flags:  []cli.Flag{passwordFlag, slateFlag, strategyFlag, messageFlag, outFlag},
	Action: payAction,
}

var finalize = cli.Command{
	Name:  "finalize",
	Usage: "complete a transaction with the slate returned by the other party",
	Flags: []cli.Flag{
		passwordFlag,
		slateFlag,
		outFlag,
		postFlag,
	},
	Action: finalizeAction,
}

var post = cli.Command{
	Name:  "post",
	Usage: "broadcast a finalized transaction",
	Flags: []cli.Flag{
		passwordFlag,
		&cli.StringFlag{
			Name:     "id",
			Usage:    "the id of the transaction",
			Required: true,
		},
	},
	Action: postAction,
}

var cancel = cli.Command{
	Name:  "cancel",
	Usage: "cancel a transaction not yet posted and release its inputs",
	Flags: []cli.Flag{
		passwordFlag,
		&cli.StringFlag{
			Name:     "id",
			Usage:    "the id of the transaction",
			Required: true,
		},
	},
	Action: cancelAction,
}

var strategies = cli.Command{
	Name:   "strategies",
	Usage:  "preview the outcome of every coin selection strategy",
	Flags:  []cli.Flag{passwordFlag, amountFlag},
	Action: strategiesAction,
}

var decode = cli.Command{
	Name:   "decode",
	Usage:  "print a slate as json",
	Flags:  []cli.Flag{slateFlag},
	Action: decodeAction,
}

func sendAction(ctx *cli.Context) error {
	req, err := parseSendRequest(ctx)
	if err != nil {
		return err
	}

	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := cfg.NegotiatorService()
	if dest := ctx.String("dest"); dest != "" {
		tx, err := svc.SendHTTPS(ctx.Context, *req, dest)
		if err != nil {
			return err
		}
		if !ctx.Bool(postFlag.Name) {
			printTransaction(*tx)
			return nil
		}
		posted, err := cfg.LedgerService().PostTransaction(ctx.Context, tx.ID)
		if err != nil {
			// Finalized anyway, it can be posted again with the post command.
			printTransaction(*tx)
			return err
		}
		printTransaction(*posted)
		return nil
	}

	s, err := svc.InitSend(ctx.Context, *req)
	if err != nil {
		return err
	}
	if err := outputSlate(ctx, svc, *s); err != nil {
		return err
	}
	_, err = svc.MarkSent(ctx.Context, s.ID)
	return err
}

func receiveAction(ctx *cli.Context) error {
	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := cfg.NegotiatorService()
	s, err := inputSlate(ctx, svc)
	if err != nil {
		return err
	}
	resp, err := svc.Receive(ctx.Context, *s, ctx.String(messageFlag.Name))
	if err != nil {
		return err
	}
	return outputSlate(ctx, svc, *resp)
}

func invoiceAction(ctx *cli.Context) error {
	amount, err := parseAmount(ctx.String(amountFlag.Name))
	if err != nil {
		return err
	}

	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := cfg.NegotiatorService()
	s, err := svc.IssueInvoice(ctx.Context, amount, ctx.String(messageFlag.Name))
	if err != nil {
		return err
	}
	return outputSlate(ctx, svc, *s)
}

func payAction(ctx *cli.Context) error {
	strategy, err := coinselect.ParseStrategy(ctx.String(strategyFlag.Name))
	if err != nil {
		return err
	}

	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := cfg.NegotiatorService()
	s, err := inputSlate(ctx, svc)
	if err != nil {
		return err
	}
	resp, err := svc.ProcessInvoice(
		ctx.Context, *s, strategy, ctx.String(messageFlag.Name),
	)
	if err != nil {
		return err
	}
	return outputSlate(ctx, svc, *resp)
}

func finalizeAction(ctx *cli.Context) error {
	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := cfg.NegotiatorService()
	s, err := inputSlate(ctx, svc)
	if err != nil {
		return err
	}
	final, err := svc.Finalize(ctx.Context, *s)
	if err != nil {
		return err
	}

	if !ctx.Bool(postFlag.Name) {
		return outputSlate(ctx, svc, *final)
	}
	tx, err := cfg.LedgerService().PostTransaction(ctx.Context, final.ID)
	if err != nil {
		return err
	}
	printTransaction(*tx)
	return nil
}

func postAction(ctx *cli.Context) error {
	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	tx, err := cfg.LedgerService().PostTransaction(ctx.Context, ctx.String("id"))
	if err != nil {
		return err
	}
	printTransaction(*tx)
	return nil
}

func cancelAction(ctx *cli.Context) error {
	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	id := ctx.String("id")
	if err := cfg.NegotiatorService().Cancel(ctx.Context, id); err != nil {
		return err
	}
	fmt.Printf("transaction %s cancelled\n", id)
	return nil
}

func strategiesAction(ctx *cli.Context) error {
	amount, err := parseAmount(ctx.String(amountFlag.Name))
	if err != nil {
		return err
	}

	cfg, cleanup, err := getUnlockedConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	previews, err := cfg.NegotiatorService().PreviewStrategies(ctx.Context, amount)
	if err != nil {
		return err
	}

	list := make([]map[string]interface{}, 0, len(previews))
	for _, p := range previews {
		list = append(list, map[string]interface{}{
			"strategy": p.Strategy.String(),
			"amount":   formatAmount(p.Amount),
			"fee":      formatAmount(p.Fee),
			"total":    formatAmount(p.Total),
			"change":   formatAmount(p.Change),
			"inputs":   p.Inputs,
			"outputs":  p.Outputs,
		})
	}
	printJSON(list)
	return nil
}

func decodeAction(ctx *cli.Context) error {
	data, err := readSlate(ctx)
	if err != nil {
		return err
	}
	s, err := slate.Decode(data)
	if err != nil {
		return err
	}
	printJSON(s)
	return nil
}

func parseSendRequest(ctx *cli.Context) (*application.SendRequest, error) {
	amount, err := parseAmount(ctx.String(amountFlag.Name))
	if err != nil {
		return nil, err
	}
	strategy, err := coinselect.ParseStrategy(ctx.String(strategyFlag.Name))
	if err != nil {
		return nil, err
	}
	return &application.SendRequest{
		Amount:   amount,
		Strategy: strategy,
		Message:  ctx.String(messageFlag.Name),
	}, nil
}

func inputSlate(
	ctx *cli.Context, svc application.NegotiatorService,
) (*slate.Slate, error) {
	data, err := readSlate(ctx)
	if err != nil {
		return nil, err
	}
	return svc.DecodeSlate(data)
}

func outputSlate(
	ctx *cli.Context, svc application.NegotiatorService, s slate.Slate,
) error {
	armored, err := svc.EncodeSlate(s)
	if err != nil {
		return err
	}
	return writeSlate(ctx, armored)
}
