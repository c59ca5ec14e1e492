package backend

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/net/proxy"
)

// maxImageBytes bounds thumbnail downloads.
const maxImageBytes = 20 << 20

// NewHTTPClient returns an *http.Client configured with the given timeout
// and optionally routed through a proxy.
//
// proxyURL examples:
//   - "" (empty): no proxy
//   - "http://host:8080"
//   - "socks5://host:1080"
func NewHTTPClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	transport := &http.Transport{}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
		}

		switch parsed.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(parsed)
		case "socks5":
			dialer, err := proxy.FromURL(parsed, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			}
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q (use http, https, or socks5)", parsed.Scheme)
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// DownloadToFile streams rawURL into dest. Responses larger than maxImageBytes
// are rejected and the partial file removed.
func DownloadToFile(ctx context.Context, client *http.Client, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, io.LimitReader(resp.Body, maxImageBytes+1))
	closeErr := out.Close()
	if err == nil && n > maxImageBytes {
		err = fmt.Errorf("response exceeds %d bytes", maxImageBytes)
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return 0, err
	}
	return n, nil
}
