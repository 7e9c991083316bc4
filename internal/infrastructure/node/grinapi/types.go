package grinapi

import (
	"encoding/json"
	"strings"

	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/pkg/slate"
)

const (
	outputTypeCoinbase = "Coinbase"
	plainFeatures      = "Plain"
)

// rpcResult is the Ok/Err envelope every foreign api method result is
// wrapped into.
type rpcResult struct {
	Ok  json.RawMessage `json:"Ok"`
	Err json.RawMessage `json:"Err"`
}

func (r rpcResult) failed() bool {
	return len(r.Err) > 0 && string(r.Err) != "null"
}

func (r rpcResult) notFound() bool {
	return strings.Contains(string(r.Err), "NotFound")
}

type tip struct {
	Height          uint64 `json:"height"`
	LastBlockPushed string `json:"last_block_pushed"`
}

type pmmrIndices struct {
	HighestIndex       uint64 `json:"highest_index"`
	LastRetrievedIndex uint64 `json:"last_retrieved_index"`
}

type outputPrintable struct {
	OutputType  string  `json:"output_type"`
	Commit      string  `json:"commit"`
	Spent       bool    `json:"spent"`
	Proof       *string `json:"proof"`
	BlockHeight *uint64 `json:"block_height"`
	MMRIndex    uint64  `json:"mmr_index"`
}

func (o outputPrintable) toNodeOutput() ports.NodeOutput {
	out := ports.NodeOutput{
		Commit:     o.Commit,
		MMRIndex:   o.MMRIndex,
		IsCoinbase: o.OutputType == outputTypeCoinbase,
	}
	if o.Proof != nil {
		out.Proof = *o.Proof
	}
	if o.BlockHeight != nil {
		out.Height = *o.BlockHeight
	}
	return out
}

// outputListing is the page returned by get_unspent_outputs. Nodes that
// track the output root per leaf index also return it, allowing callers
// to detect reorgs between pages.
type outputListing struct {
	HighestIndex       uint64            `json:"highest_index"`
	LastRetrievedIndex uint64            `json:"last_retrieved_index"`
	PrevRoot           string            `json:"prev_output_root,omitempty"`
	Root               string            `json:"output_root,omitempty"`
	Outputs            []outputPrintable `json:"outputs"`
}

func (l outputListing) toPort() *ports.OutputListing {
	outputs := make([]ports.NodeOutput, 0, len(l.Outputs))
	for _, o := range l.Outputs {
		if o.Spent {
			continue
		}
		outputs = append(outputs, o.toNodeOutput())
	}
	return &ports.OutputListing{
		HighestIndex:       l.HighestIndex,
		LastRetrievedIndex: l.LastRetrievedIndex,
		PrevRoot:           l.PrevRoot,
		Root:               l.Root,
		Outputs:            outputs,
	}
}

type txKernel struct {
	Excess string `json:"excess"`
}

type locatedKernel struct {
	Kernel   txKernel `json:"tx_kernel"`
	Height   uint64   `json:"height"`
	MMRIndex uint64   `json:"mmr_index"`
}

type txInput struct {
	Features string `json:"features"`
	Commit   string `json:"commit"`
}

type txOutput struct {
	Features string `json:"features"`
	Commit   string `json:"commit"`
	Proof    string `json:"proof"`
}

type txBody struct {
	Inputs  []txInput      `json:"inputs"`
	Outputs []txOutput     `json:"outputs"`
	Kernels []slate.Kernel `json:"kernels"`
}

type transaction struct {
	Offset string `json:"offset"`
	Body   txBody `json:"body"`
}

func newTransaction(tx ports.Transaction) transaction {
	body := txBody{
		Inputs:  make([]txInput, 0, len(tx.Inputs)),
		Outputs: make([]txOutput, 0, len(tx.Outputs)),
		Kernels: tx.Kernels,
	}
	for _, in := range tx.Inputs {
		body.Inputs = append(body.Inputs, txInput{plainFeatures, in.Commit})
	}
	for _, out := range tx.Outputs {
		body.Outputs = append(body.Outputs, txOutput{plainFeatures, out.Commit, out.Proof})
	}
	return transaction{Offset: tx.Offset, Body: body}
}
