// Package https delivers slates to the foreign api of remote wallets.
package https

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/ironbelly/walletd/internal/infrastructure/transport/tor"
	"github.com/ironbelly/walletd/pkg/slate"
	"github.com/ironbelly/walletd/pkg/util"
	log "github.com/sirupsen/logrus"
)

const (
	foreignAPIPath  = "/v2/foreign"
	minForeignAPI   = 2
	defaultTimeout  = time.Minute
	onionAPITimeout = 2 * time.Minute
)

// SenderOpts defines the parameters to create a Sender.
type SenderOpts struct {
	Timeout time.Duration
	// TorSocksAddr enables sending to onion destinations.
	TorSocksAddr string
}

type sender struct {
	nextID uint64
	direct *util.HTTPClient
	onion  *util.HTTPClient
}

type versionInfo struct {
	ForeignAPIVersion      int      `json:"foreign_api_version"`
	SupportedSlateVersions []string `json:"supported_slate_versions"`
}

type rpcResult struct {
	Ok  json.RawMessage `json:"Ok"`
	Err json.RawMessage `json:"Err"`
}

// NewSender returns a ports.SlateSender speaking the foreign api json-rpc
// protocol. Onion destinations go through tor when a socks address is
// configured.
func NewSender(opts SenderOpts) (ports.SlateSender, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s := &sender{direct: util.NewHTTPClient(timeout, nil)}
	if opts.TorSocksAddr != "" {
		dial, err := tor.NewDialer(opts.TorSocksAddr)
		if err != nil {
			return nil, err
		}
		s.onion = util.NewHTTPClient(onionAPITimeout, dial)
	}
	return s, nil
}

func (s *sender) SendSlate(
	ctx context.Context, dest string, sl slate.Slate,
) (slate.Slate, error) {
	endpoint, client, err := s.endpoint(dest)
	if err != nil {
		return slate.Slate{}, err
	}

	var version versionInfo
	if err := s.call(ctx, client, endpoint, "check_version", &version); err != nil {
		return slate.Slate{}, err
	}
	if version.ForeignAPIVersion < minForeignAPI {
		return slate.Slate{}, fmt.Errorf(
			"%w: unsupported foreign api version %d",
			ports.ErrTransport, version.ForeignAPIVersion,
		)
	}

	var resp slate.Slate
	if err := s.call(
		ctx, client, endpoint, "receive_tx", &resp, sl, nil, nil,
	); err != nil {
		return slate.Slate{}, err
	}
	log.Debugf("slate %s delivered to %s", sl.ID, dest)
	return resp, nil
}

func (s *sender) endpoint(dest string) (string, *util.HTTPClient, error) {
	u, err := url.Parse(strings.TrimSpace(dest))
	if err != nil || u.Host == "" {
		return "", nil, fmt.Errorf("%w: invalid destination %s", ports.ErrTransport, dest)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", nil, fmt.Errorf(
			"%w: unsupported scheme %s", ports.ErrTransport, u.Scheme,
		)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(u.Path, foreignAPIPath) {
		u.Path += foreignAPIPath
	}

	if !tor.IsOnion(u.Host) {
		return u.String(), s.direct, nil
	}
	if s.onion == nil {
		return "", nil, fmt.Errorf(
			"%w: tor is required to reach %s", ports.ErrTransport, u.Host,
		)
	}
	return u.String(), s.onion, nil
}

func (s *sender) call(
	ctx context.Context, client *util.HTTPClient, endpoint, method string,
	out interface{}, params ...interface{},
) error {
	req, err := util.NewRPCRequest(atomic.AddUint64(&s.nextID, 1), method, params...)
	if err != nil {
		return err
	}
	raw, err := client.CallRPC(ctx, endpoint, req, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ports.ErrTransport, method, err)
	}

	var result rpcResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("%w: %s: invalid result: %s", ports.ErrTransport, method, err)
	}
	if len(result.Err) > 0 && string(result.Err) != "null" {
		return fmt.Errorf("%w: %s: remote wallet: %s", ports.ErrTransport, method, result.Err)
	}
	if err := json.Unmarshal(result.Ok, out); err != nil {
		return fmt.Errorf("%w: %s: invalid result: %s", ports.ErrTransport, method, err)
	}
	return nil
}
