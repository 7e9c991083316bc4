package util

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const jsonRPCVersion = "2.0"

var (
	// ErrRPCTransport wraps every failure reaching the remote endpoint or
	// reading its answer.
	ErrRPCTransport = errors.New("json-rpc transport failure")
)

// RPCRequest is a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewRPCRequest builds a request with positional params.
func NewRPCRequest(id interface{}, method string, params ...interface{}) (*RPCRequest, error) {
	req := &RPCRequest{JSONRPC: jsonRPCVersion, ID: id, Method: method}
	if params == nil {
		params = []interface{}{}
	}
	buf, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req.Params = buf
	return req, nil
}

// NewRPCResult builds the successful response to req.
func NewRPCResult(req RPCRequest, result interface{}) (*RPCResponse, error) {
	buf, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &RPCResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Result: buf}, nil
}

// NewRPCErrorResponse builds the failure response to req.
func NewRPCErrorResponse(req RPCRequest, code int, msg string) *RPCResponse {
	return &RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      req.ID,
		Error:   &RPCError{Code: code, Message: msg},
	}
}

// BasicAuthHeader returns the Authorization header value for user and
// secret.
func BasicAuthHeader(user, secret string) string {
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + secret))
	return "Basic " + token
}

// CallRPC posts req to url and returns the raw result. Failures to reach
// the endpoint or to decode its answer wrap ErrRPCTransport, an error
// returned by the remote end is an *RPCError.
func (c *HTTPClient) CallRPC(
	ctx context.Context, url string, req *RPCRequest, header map[string]string,
) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range header {
		headers[k] = v
	}

	status, resp, err := c.NewHTTPRequest(
		ctx, http.MethodPost, url, string(body), headers,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRPCTransport, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRPCTransport, status, resp)
	}

	var res RPCResponse
	if err := json.Unmarshal([]byte(resp), &res); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %s", ErrRPCTransport, err)
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return res.Result, nil
}
