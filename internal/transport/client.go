package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/proxy"
)

// NewHTTPClient builds an HTTP client that sends every request through the
// configured transport. Credentialed transports disable keep-alives so each
// request leaves through a fresh exit address.
func NewHTTPClient(cfg Config, timeout time.Duration) (*http.Client, error) {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	tr := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
	}

	u, err := cfg.ProxyURL()
	if err != nil {
		return nil, err
	}
	if u != nil {
		switch u.Scheme {
		case "socks5", "socks5h":
			var auth *proxy.Auth
			if u.User != nil {
				pass, _ := u.User.Password()
				auth = &proxy.Auth{User: u.User.Username(), Password: pass}
			}
			dial, err := socksDialer(u.Host, auth, dialer)
			if err != nil {
				return nil, err
			}
			tr.DialContext = dial
		default:
			tr.Proxy = http.ProxyURL(u)
		}
	}
	if cfg.Kind == KindCredentialed {
		tr.DisableKeepAlives = true
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: tr,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}, nil
}

func socksDialer(addr string, auth *proxy.Auth, forward *net.Dialer) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	d, err := proxy.SOCKS5("tcp", addr, auth, forward)
	if err != nil {
		return nil, fmt.Errorf("%w: socks5 %s: %v", ErrTransportMisconfigured, addr, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("%w: socks5 dialer does not support contexts", ErrTransportMisconfigured)
	}
	return cd.DialContext, nil
}
