package source

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
)

// browserHello maps SOURCE_BROWSER values to uTLS ClientHello presets
var browserHello = map[string]utls.ClientHelloID{
	"chrome":  utls.HelloChrome_Auto,
	"firefox": utls.HelloFirefox_Auto,
	"safari":  utls.HelloSafari_Auto,
}

// browserDialer performs TLS handshakes whose ClientHello matches a mainstream
// browser, so fingerprinting firewalls treat the fetcher like a page visit.
type browserDialer struct {
	hello  utls.ClientHelloID
	roots  *x509.CertPool // nil uses the system pool
	dialer *net.Dialer
}

func newBrowserDialer(browser string, roots *x509.CertPool) (*browserDialer, error) {
	hello, ok := browserHello[strings.ToLower(browser)]
	if !ok {
		return nil, fmt.Errorf("unsupported browser profile: %s", browser)
	}
	return &browserDialer{
		hello:  hello,
		roots:  roots,
		dialer: &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second},
	}, nil
}

// spec returns the browser preset with ALPN pinned to HTTP/1.1, the only
// protocol a DialTLSContext connection can carry in net/http.
func (d *browserDialer) spec() (*utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(d.hello)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s hello spec: %w", d.hello.Str(), err)
	}
	for _, ext := range spec.Extensions {
		switch e := ext.(type) {
		case *utls.ALPNExtension:
			e.AlpnProtocols = []string{"http/1.1"}
		case *utls.ApplicationSettingsExtension:
			e.SupportedProtocols = []string{"http/1.1"}
		}
	}
	return &spec, nil
}

// DialTLSContext satisfies http.Transport.DialTLSContext
func (d *browserDialer) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	conn, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	spec, err := d.spec()
	if err != nil {
		conn.Close()
		return nil, err
	}

	uconn := utls.UClient(conn, &utls.Config{ServerName: host, RootCAs: d.roots}, utls.HelloCustom)
	if err := uconn.ApplyPreset(spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply hello preset: %w", err)
	}
	if err := uconn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake with %s failed: %w", host, err)
	}
	return uconn, nil
}

// newBrowserTransport returns an HTTP/1.1 transport using the browser dialer for HTTPS
func newBrowserTransport(browser string, roots *x509.CertPool) (*http.Transport, error) {
	d, err := newBrowserDialer(browser, roots)
	if err != nil {
		return nil, err
	}
	return &http.Transport{
		DialContext:           d.dialer.DialContext,
		DialTLSContext:        d.DialTLSContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		ExpectContinueTimeout: time.Second,
	}, nil
}
