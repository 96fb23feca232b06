package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/mark3labs/dealerdesk/internal/logger"
)

const (
	startTimeout    = 4 * time.Second
	drainTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// startEmbedded starts an in-process NATS server with JetStream storing
// under storeDir. No network port is opened.
func startEmbedded(storeDir string) (*server.Server, error) {
	logger.Debug("Starting journal server in %s", storeDir)

	ns, err := server.NewServer(&server.Options{
		JetStream:  true,
		StoreDir:   storeDir,
		DontListen: true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating journal server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(startTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("journal server not ready after %s", startTimeout)
	}
	return ns, nil
}

func connectInProcess(ns *server.Server) (*nats.Conn, error) {
	return nats.Connect("", nats.InProcessServer(ns), nats.Name("dealerdesk-journal"))
}

// within runs fn and reports whether it returned before d elapsed.
func within(d time.Duration, fn func()) bool {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// shutdown drains the connection and stops the server. Each step is bounded
// so a wedged server cannot hang the CLI on exit.
func shutdown(nc *nats.Conn, ns *server.Server) error {
	if nc != nil {
		errc := make(chan error, 1)
		go func() { errc <- nc.Drain() }()
		select {
		case err := <-errc:
			if err != nil {
				logger.Warn("Journal drain failed, closing: %v", err)
				nc.Close()
			}
		case <-time.After(drainTimeout):
			logger.Warn("Journal drain timed out after %s, closing", drainTimeout)
			nc.Close()
		}
	}

	if ns != nil {
		ns.Shutdown()
		if !within(shutdownTimeout, ns.WaitForShutdown) {
			return errors.New("journal server shutdown timed out")
		}
	}
	return nil
}
