package submission

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// TLSConfig controls how the ingestion endpoint's certificate is verified.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification. Local testing only.
	InsecureSkipVerify bool

	// CAFile is a PEM bundle used as the root pool instead of the system
	// roots.
	CAFile string
}

// agentRoundTripper stamps the agent's User-Agent on every outgoing request.
type agentRoundTripper struct {
	base http.RoundTripper
}

func (t *agentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent)
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the configured timeout and
// TLS settings.
func buildHTTPClient(cfg HTTPConfig) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	if cfg.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", cfg.TLS.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = tlsCfg
	return &http.Client{
		Transport: &agentRoundTripper{base: base},
		Timeout:   timeout,
	}, nil
}
