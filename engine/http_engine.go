package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"
	xproxy "golang.org/x/net/proxy"
)

// HTTPEngine is the cheapest fetch tier: a plain HTTP GET with a Chrome-like
// TLS fingerprint. Pages that turn out to be JavaScript app shells are
// reported as errors so the dispatcher escalates to a browser tier.
type HTTPEngine struct {
	client *http.Client
}

// chromeSpec is a Chrome ClientHello with ALPN restricted to http/1.1,
// computed once at init and reused for every connection.
var chromeSpec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Strip h2 from ALPN: Go's http.Transport cannot speak HTTP/2 over a
	// utls connection it did not negotiate itself.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeSpec = spec
}

// NewHTTPEngine creates an HTTPEngine with the Chrome TLS fingerprint.
func NewHTTPEngine() *HTTPEngine {
	transport, _ := newTransport("")
	return &HTTPEngine{client: newClient(transport)}
}

func newClient(transport *http.Transport) *http.Client {
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// newTransport builds the fingerprinted transport, optionally routed through
// a proxy. CONNECT-style proxies go through transport.Proxy; socks5 proxies
// wrap the dial itself so the TLS fingerprint survives.
func newTransport(proxyURL string) (*http.Transport, error) {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, addr, proxyURL)
		},
		ForceAttemptHTTP2: false,
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("http engine: parse proxy url %q: %w", proxyURL, err)
		}
		switch u.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		case "socks5", "socks5h":
			// Handled inside the dial below.
		default:
			return nil, fmt.Errorf("http engine: unsupported proxy scheme %q", u.Scheme)
		}
	}
	return transport, nil
}

// dialTLSChrome dials addr (directly, or through a socks5 proxy when one is
// given) and completes a TLS handshake with the Chrome ClientHello.
func dialTLSChrome(ctx context.Context, addr, proxyURL string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var conn net.Conn
	var err error
	if u, parseErr := url.Parse(proxyURL); proxyURL != "" && parseErr == nil &&
		(u.Scheme == "socks5" || u.Scheme == "socks5h") {
		pd, pdErr := xproxy.FromURL(u, dialer)
		if pdErr != nil {
			return nil, fmt.Errorf("http engine: socks5 proxy: %w", pdErr)
		}
		if cd, ok := pd.(xproxy.ContextDialer); ok {
			conn, err = cd.DialContext(ctx, "tcp", addr)
		} else {
			conn, err = pd.Dial("tcp", addr)
		}
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeSpec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("http engine: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	client := e.client
	if req.ProxyURL != "" {
		transport, err := newTransport(req.ProxyURL)
		if err != nil {
			return nil, err
		}
		client = newClient(transport)
		defer client.CloseIdleConnections()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("http engine: build request: %w", err)
	}

	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "identity")

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for i := range req.Cookies {
		httpReq.AddCookie(&req.Cookies[i])
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http engine: do request: %w", err)
	}
	defer resp.Body.Close()

	const maxBody = 10 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("http engine: read body: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 || !isHTMLContentType(ct) {
		return nil, fmt.Errorf("http engine: non-html or error status %d (content-type: %s)", resp.StatusCode, ct)
	}

	// App-shell pages need a browser to render anything useful. Fail the
	// fetch so the dispatcher escalates.
	if needsBrowser(body) {
		return nil, fmt.Errorf("http engine: page requires javascript rendering")
	}

	return &FetchResult{
		HTML:       string(body),
		Title:      extractTitle(body),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		EngineName: e.Name(),
	}, nil
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

var reNoscriptJS = regexp.MustCompile(`<noscript[^>]*>[^<]*(enable|activate|turn on|requires?)\s+javascript`)

// needsBrowser heuristically detects SPA shells and JS-gated pages that
// a plain HTTP fetch cannot render.
func needsBrowser(body []byte) bool {
	bodyText := visibleBodyText(body)

	// Very little visible text usually means an app shell.
	if len(bodyText) < 200 {
		return true
	}

	lower := strings.ToLower(string(body))

	// Empty SPA root containers. The nested-div check avoids false positives
	// when SSR has already rendered content inside #root.
	if strings.Contains(lower, `<div id="root"></div>`) ||
		strings.Contains(lower, `<div id="app"></div>`) ||
		strings.Contains(lower, `<div id="__next"></div>`) ||
		(strings.Contains(lower, `<div id="root">`) && !strings.Contains(lower, `<div id="root"><div`)) {
		return true
	}

	if reNoscriptJS.MatchString(lower) {
		return true
	}

	// Script-heavy pages with a thin body tend to render client-side.
	if strings.Count(lower, "<script") > 10 && len(bodyText) < 500 {
		return true
	}

	return false
}

// visibleBodyText strips tags and script/style content from <body>.
// Used only for the heuristic above.
func visibleBodyText(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "body" {
				inBody = true
			}
			if tag == "script" || tag == "style" || tag == "noscript" {
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "script" || tag == "style" || tag == "noscript" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}

// extractTitle finds the first <title> element in raw HTML bytes.
func extractTitle(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
