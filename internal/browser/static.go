package browser

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
)

// maxBodyBytes caps a static fetch; review pages past this size are
// truncated rather than rejected.
const maxBodyBytes = 8 << 20

// StaticLauncher produces Sessions that fetch pages with a plain HTTP
// client. JavaScript never runs, so Click and Evaluate are no-ops; the
// sessions suit server-rendered review pages and tests.
type StaticLauncher struct {
	client *http.Client
	cfg    config.BrowserConfig
	log    *logging.Logger
}

// NewStaticLauncher builds the launcher with a tuned shared transport.
func NewStaticLauncher(cfg config.BrowserConfig, log *logging.Logger) *StaticLauncher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &StaticLauncher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.NavTimeout(),
		},
		cfg: cfg,
		log: log,
	}
}

func (l *StaticLauncher) Launch(ctx context.Context) (Session, error) {
	return &staticSession{
		client:    l.client,
		userAgent: l.cfg.UserAgent,
	}, nil
}

func (l *StaticLauncher) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

type staticSession struct {
	client    *http.Client
	userAgent string

	html     string
	finalURL string
	doc      *goquery.Document
}

func (s *staticSession) Navigate(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("http status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return err
	}

	// Decode to UTF-8 before parsing; fall back when the payload already is.
	enc, _, _ := charset.DetermineEncoding(data, resp.Header.Get("Content-Type"))
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return fmt.Errorf("decode page: %w", err)
		}
		decoded = data
	}

	s.html = string(decoded)
	s.finalURL = resp.Request.URL.String()
	s.doc = nil
	return nil
}

// BlockResources is a no-op: a static fetch never loads subresources.
func (s *staticSession) BlockResources(ctx context.Context, patterns []string) error {
	return nil
}

// WaitVisible checks the fetched document once. The page cannot change after
// Navigate, so there is nothing to wait for; an absent selector is reported
// immediately regardless of timeout.
func (s *staticSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	doc, err := s.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("selector %q not present", selector)
	}
	return nil
}

func (s *staticSession) Click(ctx context.Context, selector string) error {
	return nil
}

func (s *staticSession) Evaluate(ctx context.Context, expr string, out interface{}) error {
	return nil
}

func (s *staticSession) HTML(ctx context.Context) (string, error) {
	if s.html == "" {
		return "", fmt.Errorf("no page loaded")
	}
	return s.html, nil
}

func (s *staticSession) Location(ctx context.Context) (string, error) {
	if s.finalURL == "" {
		return "", fmt.Errorf("no page loaded")
	}
	return s.finalURL, nil
}

func (s *staticSession) Close() error {
	s.html = ""
	s.finalURL = ""
	s.doc = nil
	return nil
}

func (s *staticSession) document() (*goquery.Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	if s.html == "" {
		return nil, fmt.Errorf("no page loaded")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return doc, nil
}
