// Package transport selects and builds the outbound network path used for
// every request to the video platform.
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// ErrTransportMisconfigured is returned when a transport cannot be built
// from its configuration.
var ErrTransportMisconfigured = errors.New("transport misconfigured")

// Kind names a transport variant.
type Kind string

const (
	KindDirect       Kind = "direct"
	KindSOCKS        Kind = "socks"
	KindCredentialed Kind = "credentialed"
	KindCustomURL    Kind = "custom_url"
)

const (
	// DefaultSOCKSPort is the local Tor SOCKS port.
	DefaultSOCKSPort = 9050

	credentialedHost = "p.webshare.io:80"
)

// Config describes one transport. Only the fields relevant to Kind are set.
type Config struct {
	Kind     Kind
	Host     string
	Port     int
	Username string
	Password string
	URL      string
}

// Direct connects without a proxy.
func Direct() Config {
	return Config{Kind: KindDirect}
}

// SOCKS routes through a SOCKS5 proxy such as a local Tor daemon.
func SOCKS(host string, port int) Config {
	if port == 0 {
		port = DefaultSOCKSPort
	}
	return Config{Kind: KindSOCKS, Host: host, Port: port}
}

// Credentialed routes through the rotating residential proxy endpoint.
func Credentialed(username, password string) Config {
	return Config{Kind: KindCredentialed, Username: username, Password: password}
}

// CustomURL routes through an arbitrary proxy URL (http, https, socks5 or
// socks5h).
func CustomURL(raw string) Config {
	return Config{Kind: KindCustomURL, URL: raw}
}

// Settings are the raw proxy values read from configuration.
type Settings struct {
	ProxyUsername  string
	ProxyPassword  string
	CustomProxyURL string
	SOCKSHost      string
	SOCKSPort      int
}

// Select picks the transport in priority order: credentialed proxy, custom
// proxy URL, SOCKS, direct. Nothing is dialled.
func Select(s Settings) Config {
	switch {
	case s.ProxyUsername != "" && s.ProxyPassword != "":
		return Credentialed(s.ProxyUsername, s.ProxyPassword)
	case s.CustomProxyURL != "":
		return CustomURL(s.CustomProxyURL)
	case s.SOCKSHost != "":
		return SOCKS(s.SOCKSHost, s.SOCKSPort)
	default:
		return Direct()
	}
}

// ProxyURL returns the proxy endpoint, or nil for a direct transport.
func (c Config) ProxyURL() (*url.URL, error) {
	switch c.Kind {
	case KindDirect, "":
		return nil, nil
	case KindSOCKS:
		if c.Host == "" {
			return nil, fmt.Errorf("%w: socks host is empty", ErrTransportMisconfigured)
		}
		return &url.URL{Scheme: "socks5", Host: net.JoinHostPort(c.Host, strconv.Itoa(c.Port))}, nil
	case KindCredentialed:
		return &url.URL{
			Scheme: "http",
			User:   url.UserPassword(c.Username+"-rotate", c.Password),
			Host:   credentialedHost,
		}, nil
	case KindCustomURL:
		u, err := url.Parse(c.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: parse proxy url: %v", ErrTransportMisconfigured, redactParseError(err))
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return nil, fmt.Errorf("%w: unsupported proxy scheme %q", ErrTransportMisconfigured, u.Scheme)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("%w: proxy url has no host", ErrTransportMisconfigured)
		}
		return u, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrTransportMisconfigured, c.Kind)
	}
}

// String describes the transport with credentials redacted.
func (c Config) String() string {
	switch c.Kind {
	case KindDirect, "":
		return "direct"
	case KindSOCKS:
		return fmt.Sprintf("socks5://%s", net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
	}
	u, err := c.ProxyURL()
	if err != nil {
		return fmt.Sprintf("%s (invalid)", c.Kind)
	}
	return fmt.Sprintf("%s %s", c.Kind, u.Redacted())
}

// url.Parse echoes the input, which may carry a password.
func redactParseError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
