package main

import (
	"net"
	"net/http"
	"os"
	"runtime"
	"time"
)

// feedClient returns the client used for release-feed and asset requests.
// The feed read is unauthenticated; a GITHUB_TOKEN, if present (CI rate
// limits), is attached as a bearer token.
func feedClient() *http.Client {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return newAuthedClient(token)
	}
	return defaultClient()
}

func defaultClient() *http.Client {
	return &http.Client{
		Transport: defaultTransport(),
	}
}

func defaultTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   runtime.GOMAXPROCS(0) + 1,
	}
}

func newAuthedClient(token string) *http.Client {
	return &http.Client{
		Transport: &authedTransport{
			Transport: defaultTransport(),
			token:     token,
		},
	}
}

type authedTransport struct {
	*http.Transport
	token string
}

func (t *authedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if values := req.Header.Values("Authorization"); len(values) == 0 {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.Transport.RoundTrip(req)
}
