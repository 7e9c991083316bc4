// Package foreignapi serves the JSON-RPC api other wallets use to deliver
// slates to this one.
package foreignapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/pkg/slate"
	"github.com/ironbelly/walletd/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	// Path is where the foreign api is served.
	Path = "/v2/foreign"

	apiVersion     = 2
	maxRequestSize = 1 << 20

	methodCheckVersion = "check_version"
	methodReceiveTx    = "receive_tx"

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

var (
	// ErrMissingSlate ...
	ErrMissingSlate = errors.New("missing slate param")

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletd",
		Subsystem: "foreign_api",
		Name:      "requests_total",
		Help:      "Number of foreign api requests by method and status.",
	}, []string{"method", "status"})
)

// VersionInfo is the result of check_version.
type VersionInfo struct {
	ForeignAPIVersion      int      `json:"foreign_api_version"`
	SupportedSlateVersions []string `json:"supported_slate_versions"`
}

type handler struct {
	receiver ports.SlateReceiver
}

// NewHandler returns the http handler of the foreign api. Every slate
// received is handed to receiver as is.
func NewHandler(receiver ports.SlateReceiver) http.Handler {
	return &handler{receiver}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req util.RPCRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeResponse(w, util.NewRPCErrorResponse(req, codeParseError, err.Error()))
		return
	}

	var (
		result interface{}
		err    error
	)
	switch req.Method {
	case methodCheckVersion:
		result = VersionInfo{
			ForeignAPIVersion:      apiVersion,
			SupportedSlateVersions: []string{fmt.Sprintf("V%d", slate.Version)},
		}
	case methodReceiveTx:
		var s slate.Slate
		s, err = parseSlate(req.Params)
		if err != nil {
			requestsTotal.WithLabelValues(req.Method, "invalid").Inc()
			writeResponse(w, util.NewRPCErrorResponse(req, codeInvalidParams, err.Error()))
			return
		}
		result, err = h.receive(r.Context(), s)
	case "":
		writeResponse(w, util.NewRPCErrorResponse(req, codeInvalidRequest, "missing method"))
		return
	default:
		requestsTotal.WithLabelValues("unknown", "invalid").Inc()
		writeResponse(w, util.NewRPCErrorResponse(
			req, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method),
		))
		return
	}

	// Like the node api, failures of the method itself are reported in the
	// Err field of a successful json-rpc response.
	envelope := map[string]interface{}{"Ok": result}
	status := "ok"
	if err != nil {
		envelope = map[string]interface{}{"Err": err.Error()}
		status = "error"
	}
	requestsTotal.WithLabelValues(req.Method, status).Inc()

	resp, err := util.NewRPCResult(req, envelope)
	if err != nil {
		log.WithError(err).Warn("failed to encode foreign api response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeResponse(w, resp)
}

func (h *handler) receive(ctx context.Context, s slate.Slate) (*slate.Slate, error) {
	resp, err := h.receiver.ReceiveSlate(ctx, s)
	if err != nil {
		log.WithError(err).WithField("slate", s.ID).Warn("failed to receive slate")
		return nil, err
	}
	log.Infof("received slate %s for amount %d", s.ID, s.Amount)
	return &resp, nil
}

// parseSlate accepts the slate as first param either as a json object or
// as a string, armored or not.
func parseSlate(params json.RawMessage) (slate.Slate, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(params, &list); err != nil {
		return slate.Slate{}, err
	}
	if len(list) <= 0 || string(list[0]) == "null" {
		return slate.Slate{}, ErrMissingSlate
	}

	var str string
	if err := json.Unmarshal(list[0], &str); err == nil {
		return slate.Decode(str)
	}
	return slate.Decode(string(list[0]))
}

func writeResponse(w http.ResponseWriter, resp *util.RPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Debug("failed to write foreign api response")
	}
}
