package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/qualipredict/log"
)

var ErrNoCertificate = errors.New("no certificate loaded")

// certReloader serves the key pair from certFile/keyFile and reloads it
// whenever one of the files changes.
type certReloader struct {
	certFile string
	keyFile  string
	log      *log.Logger
	mu       sync.RWMutex
	cert     *tls.Certificate
}

func newCertReloader(certFile, keyFile string) *certReloader {
	return &certReloader{
		certFile: certFile,
		keyFile:  keyFile,
		log:      log.Default().Named("server.certs"),
	}
}

func (c *certReloader) load() error {
	cert, err := tls.LoadX509KeyPair(c.certFile, c.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = &cert
	c.log.Info("Loaded cert",
		log.String("cert", c.certFile),
		log.String("key", c.keyFile))
	return nil
}

func (c *certReloader) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cert == nil {
		return nil, ErrNoCertificate
	}
	return c.cert, nil
}

// watch reloads the certificate on file changes until ctx is done.
// A failed reload keeps the previous certificate.
func (c *certReloader) watch(ctx context.Context, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	for _, f := range []string{c.certFile, c.keyFile} {
		if err := watcher.Add(f); err != nil {
			return fmt.Errorf("watch %s: %w", f, err)
		}
	}
	if ready != nil {
		close(ready)
	}
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("context done, stopping cert reload")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			c.log.Debug("change detected", log.String("file", event.Name))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Chmod) {

				if err := c.load(); err != nil {
					c.log.Warn("could not reload cert, keeping previous one",
						log.ErrorField(err))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.log.Error("watcher error", log.ErrorField(err))
		}
	}
}

// newTLSConfig returns nil if no cert/key pair is configured.
//
//nolint:whitespace // editor/linter issue
func newTLSConfig(
	ctx context.Context, certFile, keyFile, caFile string,
) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, nil
	}
	c := newCertReloader(certFile, keyFile)
	if err := c.load(); err != nil {
		return nil, err
	}
	ret := &tls.Config{
		GetCertificate: c.getCertificate,
		MinVersion:     tls.VersionTLS13,
	}
	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caCert); !ok {
			return nil, fmt.Errorf("no certificates found in %s", caFile)
		}
		ret.ClientCAs = pool
		ret.ClientAuth = tls.VerifyClientCertIfGiven
	}
	go func() {
		if err := c.watch(ctx, nil); err != nil {
			c.log.Error("could not watch cert files", log.ErrorField(err))
		}
	}()
	return ret, nil
}
