package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deejross/go-wbem/cimxml"
)

// cimomPath is the request path CIM servers listen on
const cimomPath = "/cimom"

// HTTP sends CIM-XML requests over HTTP(S) POST. One request per Send call,
// no retries; timeout policy belongs to the injected http.Client or the
// caller's context.
type HTTP struct {
	host     string
	port     int
	tls      bool
	username string
	password string
	debug    bool
	client   *http.Client
	log      *logrus.Logger

	// LastRequest and LastResponse retain the raw exchange when the debug
	// option is set, for inspection by tools.
	LastRequest  []byte
	LastResponse []byte
}

// Option configures the HTTP transport
type Option func(*HTTP)

// WithPort overrides the default port 80
func WithPort(port int) Option {
	return func(h *HTTP) {
		h.port = port
	}
}

// WithTLS switches the URL scheme to https
func WithTLS() Option {
	return func(h *HTTP) {
		h.tls = true
	}
}

// WithCredentials enables HTTP Basic authentication
func WithCredentials(username, password string) Option {
	return func(h *HTTP) {
		h.username = username
		h.password = password
	}
}

// WithDebug retains raw request/response bytes and logs them at debug level
func WithDebug() Option {
	return func(h *HTTP) {
		h.debug = true
	}
}

// WithHTTPClient injects a custom http.Client (timeouts, TLS config)
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithLogger injects a logger; defaults to the logrus standard logger
func WithLogger(log *logrus.Logger) Option {
	return func(h *HTTP) {
		h.log = log
	}
}

// NewHTTP creates a transport for the given host
func NewHTTP(host string, opts ...Option) *HTTP {
	h := &HTTP{
		host:   host,
		port:   80,
		client: http.DefaultClient,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// URL returns the endpoint the transport posts to
func (h *HTTP) URL() string {
	scheme := "http"
	if h.tls {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, h.host, h.port, cimomPath)
}

// Send posts one CIM-XML request and returns the raw response body
func (h *HTTP) Send(ctx context.Context, hdrs cimxml.Headers, body []byte) ([]byte, error) {
	if h.debug {
		h.LastRequest = body
		h.log.WithFields(logrus.Fields{
			"method": hdrs.CIMMethod,
			"object": hdrs.CIMObject,
			"bytes":  len(body),
		}).Debugf("wbem request: %s", body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", `application/xml; charset="utf-8"`)
	req.Header.Set("CIMOperation", quoteHeader(hdrs.CIMOperation))
	req.Header.Set("CIMMethod", quoteHeader(hdrs.CIMMethod))
	req.Header.Set("CIMObject", quoteHeader(hdrs.CIMObject))
	if h.username != "" && h.password != "" {
		req.SetBasicAuth(h.username, h.password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, &AuthenticationError{Reason: resp.Status}
		}
		if cimErr := resp.Header.Get("CIMError"); cimErr != "" {
			detail := resp.Header.Get("PGErrorDetail")
			if unquoted, err := url.QueryUnescape(detail); err == nil {
				detail = unquoted
			}
			return nil, &ServerError{CIMError: cimErr, Detail: detail}
		}
		return nil, &StatusError{Code: resp.StatusCode, Reason: resp.Status}
	}

	if h.debug {
		h.LastResponse = raw
		h.log.WithField("bytes", len(raw)).Debugf("wbem response: %s", raw)
	}

	return raw, nil
}

// quoteHeader percent-encodes a header value, leaving '/' intact so
// namespace paths stay readable
func quoteHeader(v string) string {
	return strings.ReplaceAll(url.PathEscape(v), "%2F", "/")
}
