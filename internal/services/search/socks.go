// -----------------------------------------------------------------------
// Stream-isolated SOCKS5 dialing - Tor-style providers map distinct proxy
// credentials to distinct exit streams, so rotating the credential pair
// rotates the apparent origin without restarting anything
// -----------------------------------------------------------------------

package search

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/net/proxy"

	"github.com/noeticlabs/websearch/internal/common"
)

// streamDialer builds HTTP clients whose SOCKS5 credentials encode a
// stream id. Rotate bumps the id; the next client gets a fresh stream.
type streamDialer struct {
	address  string
	streamID atomic.Int64
	timeout  time.Duration
}

func newStreamDialer(cfg common.ProxyConfig, timeout time.Duration) *streamDialer {
	if cfg.Type != "socks5" || cfg.Address == "" {
		return nil
	}
	return &streamDialer{address: cfg.Address, timeout: timeout}
}

// Rotate advances to the next stream and returns its id.
func (d *streamDialer) Rotate() int64 {
	return d.streamID.Add(1)
}

// Client returns an HTTP client bound to the current stream.
func (d *streamDialer) Client() (*http.Client, error) {
	id := d.streamID.Load()
	cred := fmt.Sprintf("stream-%d", id)

	dialer, err := proxy.SOCKS5("tcp", d.address, &proxy.Auth{User: cred, Password: cred}, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("invalid socks5 proxy %q: %w", d.address, err)
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
		// Connection reuse would pin the old stream after a rotate.
		DisableKeepAlives: true,
	}

	return &http.Client{Timeout: d.timeout, Transport: transport}, nil
}
