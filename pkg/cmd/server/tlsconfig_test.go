package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyPair(t *testing.T, dir, cn string) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{cn},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDer, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile = filepath.Join(dir, "tls.crt")
	keyFile = filepath.Join(dir, "tls.key")
	require.NoError(t, os.WriteFile(keyFile,
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDer}), 0o600))
	require.NoError(t, os.WriteFile(certFile,
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	return certFile, keyFile
}

func TestNewTLSConfigDisabled(t *testing.T) {
	cfg, err := newTLSConfig(context.Background(), "", "", "")
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestNewTLSConfigMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := newTLSConfig(context.Background(),
		filepath.Join(dir, "none.crt"), filepath.Join(dir, "none.key"), "")
	assert.Error(t, err)
}

func TestNewTLSConfigWithCA(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "localhost")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg, err := newTLSConfig(ctx, certFile, keyFile, certFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.NotNil(t, cfg.ClientCAs)
	cert, err := cfg.GetCertificate(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)
}

func TestCertReload(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "first.example.com")
	c := newCertReloader(certFile, keyFile)
	require.NoError(t, c.load())
	first, err := c.getCertificate(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- c.watch(ctx, ready) }()
	<-ready

	writeKeyPair(t, dir, "second.example.com")
	assert.Eventually(t, func() bool {
		cur, cErr := c.getCertificate(nil)
		return cErr == nil && !bytes.Equal(cur.Certificate[0], first.Certificate[0])
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestGetCertificateWithoutLoad(t *testing.T) {
	c := newCertReloader("a", "b")
	_, err := c.getCertificate(nil)
	assert.ErrorIs(t, err, ErrNoCertificate)
}
