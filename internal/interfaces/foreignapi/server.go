package foreignapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ironbelly/walletd/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Publisher exposes a local port under another address, for example an
// onion service.
type Publisher interface {
	Publish(localPort int) (string, error)
	Close() error
}

// ServerOpts defines the parameters to create a Server.
type ServerOpts struct {
	Address     string
	Publisher   Publisher
	WithMetrics bool
}

func (o ServerOpts) validate() error {
	if _, _, err := net.SplitHostPort(o.Address); err != nil {
		return fmt.Errorf("invalid listen address: %s", err)
	}
	return nil
}

// Server runs the foreign api over http and, if a publisher is given,
// makes it reachable through it.
type Server struct {
	opts ServerOpts

	lock    sync.RWMutex
	address string
}

var _ ports.Listener = (*Server)(nil)

func NewServer(opts ServerOpts) (*Server, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Server{opts: opts}, nil
}

// Address returns the address other wallets can send slates to, empty
// until the server is listening.
func (s *Server) Address() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.address
}

// Listen serves the foreign api until ctx is done.
func (s *Server) Listen(ctx context.Context, receiver ports.SlateReceiver) error {
	lis, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}
	port := lis.Addr().(*net.TCPAddr).Port

	address := fmt.Sprintf("http://%s", lis.Addr())
	if s.opts.Publisher != nil {
		if address, err = s.opts.Publisher.Publish(port); err != nil {
			lis.Close()
			return fmt.Errorf("failed to publish listener: %w", err)
		}
		defer func() {
			if err := s.opts.Publisher.Close(); err != nil {
				log.WithError(err).Warn("failed to close publisher")
			}
		}()
	}
	s.setAddress(address)
	defer s.setAddress("")

	mux := http.NewServeMux()
	mux.Handle(Path, requestLogger(NewHandler(receiver)))
	if s.opts.WithMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		errC <- srv.Serve(lis)
	}()
	log.Infof("foreign api listening on %s", address)

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("foreign api stopped")
	return nil
}

func (s *Server) setAddress(address string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.address = address
}
