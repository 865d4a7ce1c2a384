package checker

import (
	"context"
	"net"
	"net/url"

	"golang.org/x/net/proxy"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ProxyDialer returns a dial function tunnelling through a socks5:// proxy.
// It returns nil for empty, unparsable or non-SOCKS proxy URLs.
func ProxyDialer(proxyURL string, baseDial dialFunc) dialFunc {
	if proxyURL == "" {
		return nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil || u.Scheme != "socks5" {
		return nil
	}

	var auth *proxy.Auth
	if u.User != nil {
		auth = &proxy.Auth{User: u.User.Username()}
		auth.Password, _ = u.User.Password()
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, &contextDialer{dial: baseDial})
	if err != nil {
		return nil
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
}

// HTTPProxyURL parses an http:// or https:// proxy URL for http.Transport.Proxy.
func HTTPProxyURL(proxyURL string) *url.URL {
	if proxyURL == "" {
		return nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return u
	}
	return nil
}

type contextDialer struct {
	dial dialFunc
}

func (d *contextDialer) Dial(network, addr string) (net.Conn, error) {
	return d.dial(context.Background(), network, addr)
}

func (d *contextDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return d.dial(ctx, network, addr)
}
