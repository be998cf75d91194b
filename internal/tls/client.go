package tls

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrCertNotFound    = errors.New("certificate file not found")
	ErrKeyNotFound     = errors.New("key file not found")
	ErrCertInvalid     = errors.New("certificate invalid")
	ErrCANotFound      = errors.New("CA certificate not found")
	ErrCAInvalid       = errors.New("CA certificate invalid")
	ErrIncompletePair  = errors.New("client certificate and key must be set together")
	ErrNoCertificates  = errors.New("no certificates in file")
	ErrInvalidTimeout  = errors.New("http timeout must be positive")
	ErrCertExpired     = errors.New("certificate expired")
	ErrCertNotYetValid = errors.New("certificate not yet valid")
)

// Options describe how the agent authenticates the backend and, optionally,
// itself. All paths are PEM files.
type Options struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool
}

// ClientConfig builds the TLS configuration used for backend requests.
// TLS 1.2 is the floor. An empty Options yields the system trust store.
func ClientConfig(opts Options) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // operator opt-in for lab backends
	}

	if (opts.CertFile == "") != (opts.KeyFile == "") {
		return nil, ErrIncompletePair
	}
	if opts.CertFile != "" {
		cert, err := LoadCertificate(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{*cert}
	}

	if opts.CAFile != "" {
		pool, err := LoadCAPool(opts.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// NewHTTPClient returns an HTTP client with a mandatory overall timeout.
func NewHTTPClient(opts Options, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	tlsCfg, err := ClientConfig(opts)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// LoadCertificate loads a certificate and key from files.
func LoadCertificate(certFile, keyFile string) (*tls.Certificate, error) {
	if _, err := os.Stat(certFile); os.IsNotExist(err) {
		return nil, ErrCertNotFound
	}
	if _, err := os.Stat(keyFile); os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertInvalid, err)
	}
	return &cert, nil
}

// LoadCAPool loads a CA certificate pool from a file.
func LoadCAPool(caFile string) (*x509.CertPool, error) {
	data, err := os.ReadFile(filepath.Clean(caFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCANotFound
		}
		return nil, fmt.Errorf("read CA file: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, ErrCAInvalid
	}
	return pool, nil
}

// CertificateInfo summarizes the leaf certificate of a PEM file.
type CertificateInfo struct {
	Subject      string
	NotAfter     time.Time
	DaysToExpiry int
}

// Inspect reads the leaf certificate of certFile and reports its expiry.
// A certificate outside its validity window returns the info together with
// ErrCertExpired or ErrCertNotYetValid.
func Inspect(certFile string, now time.Time) (*CertificateInfo, error) {
	data, err := os.ReadFile(filepath.Clean(certFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCertNotFound
		}
		return nil, err
	}

	var leaf *x509.Certificate
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		leaf, err = x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCertInvalid, err)
		}
		break
	}
	if leaf == nil {
		return nil, ErrNoCertificates
	}

	info := &CertificateInfo{
		Subject:      leaf.Subject.String(),
		NotAfter:     leaf.NotAfter,
		DaysToExpiry: int(leaf.NotAfter.Sub(now).Hours() / 24),
	}
	switch {
	case now.Before(leaf.NotBefore):
		return info, ErrCertNotYetValid
	case now.After(leaf.NotAfter):
		return info, ErrCertExpired
	}
	return info, nil
}
