// Package tor publishes the foreign api as an onion service and lets the
// wallet reach onion destinations.
package tor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/tor"
	log "github.com/sirupsen/logrus"
)

const (
	defaultVirtualPort = 80
	keyFilePerm        = 0600
)

var (
	// ErrMissingControlAddr ...
	ErrMissingControlAddr = errors.New("missing tor control address")
	// ErrMissingKeyPath ...
	ErrMissingKeyPath = errors.New("missing onion service key path")
	// ErrAlreadyPublished ...
	ErrAlreadyPublished = errors.New("onion service is already published")
)

// OnionOpts defines the parameters to create an OnionService.
type OnionOpts struct {
	ControlAddr     string
	ControlPassword string
	// TargetIP is the address tor forwards connections to. Empty means
	// localhost.
	TargetIP    string
	VirtualPort int
	// KeyPath is where the private key of the service is stored, so that
	// the onion address stays the same across restarts.
	KeyPath string
}

func (o OnionOpts) validate() error {
	if o.ControlAddr == "" {
		return ErrMissingControlAddr
	}
	if o.KeyPath == "" {
		return ErrMissingKeyPath
	}
	return nil
}

// OnionService publishes a local port as a v3 onion service through the
// control port of a running tor daemon.
type OnionService struct {
	opts OnionOpts

	lock       sync.Mutex
	controller *tor.Controller
}

func NewOnionService(opts OnionOpts) (*OnionService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.VirtualPort <= 0 {
		opts.VirtualPort = defaultVirtualPort
	}
	return &OnionService{opts: opts}, nil
}

// Publish creates, or restores from the stored key, the onion service
// forwarding to localPort and returns its http url.
func (s *OnionService) Publish(localPort int) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.controller != nil {
		return "", ErrAlreadyPublished
	}

	controller := tor.NewController(
		s.opts.ControlAddr, s.opts.TargetIP, s.opts.ControlPassword,
	)
	if err := controller.Start(); err != nil {
		return "", fmt.Errorf("failed to connect to tor control port: %w", err)
	}

	addr, err := controller.AddOnion(tor.AddOnionConfig{
		Type:        tor.V3,
		VirtualPort: s.opts.VirtualPort,
		TargetPorts: []int{localPort},
		Store:       tor.NewOnionFile(s.opts.KeyPath, keyFilePerm, false, nil),
	})
	if err != nil {
		_ = controller.Stop()
		return "", fmt.Errorf("failed to create onion service: %w", err)
	}
	s.controller = controller

	log.Infof("onion service %s published", addr)
	return onionURL(addr.OnionService, addr.Port), nil
}

// Close tears down the onion service by closing the control connection
// that created it.
func (s *OnionService) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.controller == nil {
		return nil
	}
	err := s.controller.Stop()
	s.controller = nil
	return err
}

func onionURL(service string, port int) string {
	if port == defaultVirtualPort {
		return fmt.Sprintf("http://%s", service)
	}
	return fmt.Sprintf("http://%s:%d", service, port)
}
