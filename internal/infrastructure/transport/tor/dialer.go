package tor

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/ironbelly/walletd/pkg/util"
	"golang.org/x/net/proxy"
)

// ErrMissingSocksAddr ...
var ErrMissingSocksAddr = errors.New("missing tor socks address")

// NewDialer returns a dial function routing every connection through the
// socks5 proxy of tor at socksAddr.
func NewDialer(socksAddr string) (util.DialFunc, error) {
	if socksAddr == "" {
		return nil, ErrMissingSocksAddr
	}
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}

	if d, ok := dialer.(proxy.ContextDialer); ok {
		return d.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}

// IsOnion returns whether host is an onion address, with or without port.
func IsOnion(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.HasSuffix(strings.ToLower(host), ".onion")
}
