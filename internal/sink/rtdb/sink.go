// Package rtdb writes records to a Firebase Realtime Database over its REST API.
package rtdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/omarathon/riot-api-crawler/internal/sink"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// nullETag is the ETag the database reports for a location with no data.
const nullETag = "null_etag"

// Config describes the database location records are written under.
type Config struct {
	// URL is the database root, e.g. https://<db>.firebasedatabase.app.
	URL string `mapstructure:"url"`
	// Node is the child every record is stored beneath.
	Node string `mapstructure:"node"`
	// Secret is passed as the auth query parameter when set.
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Sink PUTs each record to <url>/<node>/<key>.json.
type Sink struct {
	cfg    Config
	base   string
	http   *fasthttp.Client
	logger *zap.Logger
}

// New validates cfg.
func New(cfg Config, logger *zap.Logger) (*Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("rtdb url %q is invalid", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	base := strings.TrimRight(u.String(), "/")
	if node := sanitisePath(cfg.Node); node != "" {
		base += "/" + node
	}
	return &Sink{
		cfg:  cfg,
		base: base,
		http: &fasthttp.Client{
			Name:                "riot-api-crawler",
			MaxConnsPerHost:     32,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		logger: logger.Named("rtdb"),
	}, nil
}

// Endpoint returns the REST URL a key is written to.
func (s *Sink) Endpoint(key string) string {
	endpoint := s.base + "/" + sanitisePath(key) + ".json"
	if s.cfg.Secret != "" {
		endpoint += "?auth=" + url.QueryEscape(s.cfg.Secret)
	}
	return endpoint
}

// Write stores rec unless the location already holds data.
func (s *Sink) Write(ctx context.Context, rec sink.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	body := rec.Body
	if !json.Valid(body) {
		encoded, err := json.Marshal(string(body))
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = encoded
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.Endpoint(rec.Key))
	req.URI().DisablePathNormalizing = true
	req.Header.SetMethod(fasthttp.MethodPut)
	req.Header.SetContentType("application/json")
	req.Header.Set("If-Match", nullETag)
	req.SetBody(body)

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.http.DoDeadline(req, resp, deadline); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("put %s: %w", rec.Key, err)
	}

	switch code := resp.StatusCode(); code {
	case fasthttp.StatusOK:
		return nil
	case fasthttp.StatusPreconditionFailed:
		s.logger.Debug("record exists", zap.String("key", rec.Key))
		return nil
	default:
		return fmt.Errorf("put %s: status %d: %w", rec.Key, code, decodeError(resp.Body()))
	}
}

// Close releases idle connections.
func (s *Sink) Close(context.Context) error {
	s.http.CloseIdleConnections()
	return nil
}

func decodeError(body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return errors.New(payload.Error)
	}
	return errors.New(strings.TrimSpace(string(body)))
}

// sanitisePath replaces characters the database forbids in keys. Slashes
// separate children and are kept; empty segments are dropped.
func sanitisePath(p string) string {
	segments := strings.Split(p, "/")
	out := segments[:0]
	for _, seg := range segments {
		seg = strings.Map(func(r rune) rune {
			switch r {
			case '.', '$', '#', '[', ']':
				return '_'
			}
			if r < 0x20 || r == 0x7f {
				return '_'
			}
			return r
		}, seg)
		if seg != "" {
			out = append(out, url.PathEscape(seg))
		}
	}
	return strings.Join(out, "/")
}
