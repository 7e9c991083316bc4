// Package grinapi implements the wallet's node client over the JSON-RPC
// foreign api of a grin node.
package grinapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/pkg/circuitbreaker"
	"github.com/ironbelly/walletd/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

const (
	foreignAPIPath   = "/v2/foreign"
	apiUser          = "grin"
	defaultRateLimit = 50
)

var (
	// ErrInvalidEndpoint ...
	ErrInvalidEndpoint = errors.New("node endpoint must be a valid http(s) url")

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletd",
		Subsystem: "node",
		Name:      "requests_total",
		Help:      "Number of requests sent to the node by method and status.",
	}, []string{"method", "status"})
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "walletd",
		Subsystem: "node",
		Name:      "request_duration_seconds",
		Help:      "Duration of requests sent to the node.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)

// Opts defines the parameters to create a node client.
type Opts struct {
	Endpoint  string
	APISecret string
	Timeout   time.Duration
	// RateLimit caps the number of requests per second.
	RateLimit int
	Dial      util.DialFunc
}

func (o Opts) validate() error {
	_, err := ParseEndpoint(o.Endpoint)
	return err
}

// ParseEndpoint parses the url of a node api.
func ParseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidEndpoint
	}
	return u, nil
}

type client struct {
	nextID  uint64
	url     string
	header  map[string]string
	http    *util.HTTPClient
	cb      *gobreaker.CircuitBreaker
	limiter ratelimit.Limiter
}

// NewClient returns a ports.NodeClient talking to the node at
// opts.Endpoint. Transport failures are reported as
// ports.ErrNodeUnavailable and trip the circuit breaker after repeated
// failures, in which case calls fail fast until the node recovers.
func NewClient(opts Opts) (ports.NodeClient, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	rate := opts.RateLimit
	if rate <= 0 {
		rate = defaultRateLimit
	}

	header := map[string]string{}
	if opts.APISecret != "" {
		header["Authorization"] = util.BasicAuthHeader(apiUser, opts.APISecret)
	}

	u, _ := ParseEndpoint(opts.Endpoint)
	u.Path = foreignAPIPath

	return &client{
		url:     u.String(),
		header:  header,
		http:    util.NewHTTPClient(opts.Timeout, opts.Dial),
		cb:      circuitbreaker.NewCircuitBreaker("node"),
		limiter: ratelimit.New(rate),
	}, nil
}

func (c *client) GetTip(ctx context.Context) (*ports.Tip, error) {
	var res tip
	if _, err := c.call(ctx, "get_tip", &res); err != nil {
		return nil, err
	}
	return &ports.Tip{Height: res.Height, Hash: res.LastBlockPushed}, nil
}

func (c *client) GetPMMRIndices(
	ctx context.Context, startHeight, endHeight uint64,
) (*ports.PMMRIndices, error) {
	var res pmmrIndices
	if _, err := c.call(
		ctx, "get_pmmr_indices", &res, startHeight, endHeight,
	); err != nil {
		return nil, err
	}
	return &ports.PMMRIndices{
		LastRetrievedIndex: res.LastRetrievedIndex,
		HighestIndex:       res.HighestIndex,
	}, nil
}

func (c *client) GetUnspentOutputs(
	ctx context.Context, startIndex, endIndex, max uint64,
) (*ports.OutputListing, error) {
	var res outputListing
	if _, err := c.call(
		ctx, "get_unspent_outputs", &res, startIndex, endIndex, max, true,
	); err != nil {
		return nil, err
	}
	return res.toPort(), nil
}

func (c *client) GetOutputs(
	ctx context.Context, commits []string,
) ([]ports.NodeOutput, error) {
	if len(commits) == 0 {
		return nil, nil
	}

	var res []outputPrintable
	if _, err := c.call(
		ctx, "get_outputs", &res, commits, nil, nil, true, false,
	); err != nil {
		return nil, err
	}

	outputs := make([]ports.NodeOutput, 0, len(res))
	for _, o := range res {
		if o.Spent {
			continue
		}
		outputs = append(outputs, o.toNodeOutput())
	}
	return outputs, nil
}

func (c *client) GetKernel(
	ctx context.Context, excess string, minHeight, maxHeight uint64,
) (*ports.KernelLocation, error) {
	var res locatedKernel
	result, err := c.call(
		ctx, "get_kernel", &res, excess, optionalHeight(minHeight),
		optionalHeight(maxHeight),
	)
	if err != nil {
		if result != nil && result.notFound() {
			return nil, nil
		}
		return nil, err
	}
	return &ports.KernelLocation{
		Excess:   res.Kernel.Excess,
		Height:   res.Height,
		MMRIndex: res.MMRIndex,
	}, nil
}

func (c *client) PushTransaction(ctx context.Context, tx ports.Transaction) error {
	result, err := c.call(ctx, "push_transaction", nil, newTransaction(tx), false)
	if err != nil && result != nil && result.failed() {
		return &ports.TxRejectedError{Reason: string(result.Err)}
	}
	return err
}

// call invokes method and decodes its Ok result into out. When the node
// answers with an Err result, that result is returned along with an error
// so that callers can interpret it.
func (c *client) call(
	ctx context.Context, method string, out interface{}, params ...interface{},
) (*rpcResult, error) {
	req, err := util.NewRPCRequest(atomic.AddUint64(&c.nextID, 1), method, params...)
	if err != nil {
		return nil, err
	}

	c.limiter.Take()
	start := time.Now()

	// Errors returned by the node itself do not count as failures for the
	// breaker.
	iRes, err := c.cb.Execute(func() (interface{}, error) {
		raw, err := c.http.CallRPC(ctx, c.url, req, c.header)
		if err != nil {
			var rpcErr *util.RPCError
			if errors.As(err, &rpcErr) {
				return rpcErr, nil
			}
			return nil, err
		}
		return raw, nil
	})
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(method, "unavailable").Inc()
		return nil, fmt.Errorf("%w: %s: %s", ports.ErrNodeUnavailable, method, err)
	}
	if rpcErr, ok := iRes.(*util.RPCError); ok {
		requestsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s: %w", method, rpcErr)
	}

	var result rpcResult
	if err := json.Unmarshal(iRes.(json.RawMessage), &result); err != nil {
		requestsTotal.WithLabelValues(method, "invalid").Inc()
		return nil, fmt.Errorf("%s: invalid result: %w", method, err)
	}
	if result.failed() {
		requestsTotal.WithLabelValues(method, "error").Inc()
		return &result, fmt.Errorf("%s: %s", method, result.Err)
	}
	requestsTotal.WithLabelValues(method, "ok").Inc()

	if out == nil {
		return &result, nil
	}
	if err := json.Unmarshal(result.Ok, out); err != nil {
		return nil, fmt.Errorf("%s: invalid result: %w", method, err)
	}
	return &result, nil
}

func optionalHeight(height uint64) interface{} {
	if height == 0 {
		return nil
	}
	return height
}
