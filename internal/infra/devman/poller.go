// internal/infra/devman/poller.go
package devman

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"review_notification_bot/internal/domain/review"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL          = "https://dvmn.org/api"
	DefaultReconnectTimeout = 5 * time.Second
	DefaultReadTimeout      = 120 * time.Second

	maxErrorBodyBytes = 512
)

// Stats is a snapshot of the poller's counters.
type Stats struct {
	Requests       int
	Timeouts       int
	Reconnects     int
	Payloads       int
	Cursor         review.Cursor
	HasCursor      bool
	LastResponseAt time.Time
}

// Poller long-polls the review API and yields every payload it receives.
// The cursor lives in memory only and starts empty for each new Poller.
type Poller struct {
	httpClient       *http.Client
	endpoint         string
	token            string
	reconnectTimeout time.Duration
	logger           *logrus.Entry
	sleep            func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	stats Stats
}

// NewPoller creates a Poller. A nil httpClient gets one with DefaultReadTimeout.
func NewPoller(
	baseURL string,
	token string,
	reconnectTimeout time.Duration,
	httpClient *http.Client,
	logger *logrus.Entry,
) *Poller {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if reconnectTimeout <= 0 {
		reconnectTimeout = DefaultReconnectTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultReadTimeout}
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Poller{
		httpClient:       httpClient,
		endpoint:         strings.TrimRight(baseURL, "/") + "/long_polling",
		token:            token,
		reconnectTimeout: reconnectTimeout,
		logger:           logger,
		sleep:            sleepContext,
	}
}

// Reviews returns an endless sequence of payloads. Transient network failures are
// retried internally; any other failure is yielded once as the error and ends the sequence.
// The cursor is advanced only after the consumer has accepted a payload.
func (p *Poller) Reviews(ctx context.Context) iter.Seq2[review.Payload, error] {
	return func(yield func(review.Payload, error) bool) {
		for {
			payload, err := p.fetch(ctx)
			if err != nil {
				yield(review.Payload{}, err)
				return
			}
			if !yield(payload, nil) {
				return
			}
			if err := p.advance(payload); err != nil {
				yield(review.Payload{}, err)
				return
			}
		}
	}
}

// Stats returns a copy of the current counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Poller) advance(payload review.Payload) error {
	cursor, ok, err := review.NextCursor(payload)
	if err != nil {
		return err
	}
	if !ok {
		p.logger.WithField("status", payload.Status).Debug("Payload carries no cursor, keeping the current one")
		return nil
	}
	p.mu.Lock()
	p.stats.Cursor = cursor
	p.stats.HasCursor = true
	p.mu.Unlock()
	return nil
}

func (p *Poller) fetch(ctx context.Context) (review.Payload, error) {
	for {
		if err := ctx.Err(); err != nil {
			return review.Payload{}, err
		}

		req, err := p.newRequest(ctx)
		if err != nil {
			return review.Payload{}, fmt.Errorf("failed to build long polling request: %w", err)
		}

		p.count(func(s *Stats) { s.Requests++ })
		resp, err := p.httpClient.Do(req)
		if err != nil {
			switch classify(ctx, err) {
			case failureCanceled:
				return review.Payload{}, ctx.Err()
			case failureTimeout:
				p.count(func(s *Stats) { s.Timeouts++ })
				p.logger.WithError(err).Debug("Long polling request timed out, reissuing")
				continue
			default:
				p.count(func(s *Stats) { s.Reconnects++ })
				p.logger.WithError(err).WithField("reconnect_in", p.reconnectTimeout.String()).Warn("Could not reach review API")
				if err := p.sleep(ctx, p.reconnectTimeout); err != nil {
					return review.Payload{}, err
				}
				continue
			}
		}

		payload, err := p.readPayload(resp)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && ctx.Err() == nil {
				p.count(func(s *Stats) { s.Timeouts++ })
				p.logger.WithError(err).Debug("Timed out reading long polling response, reissuing")
				continue
			}
			return review.Payload{}, err
		}

		p.count(func(s *Stats) {
			s.Payloads++
			s.LastResponseAt = time.Now()
		})
		return payload, nil
	}
}

func (p *Poller) newRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+p.token)

	stats := p.Stats()
	if stats.HasCursor {
		q := req.URL.Query()
		q.Set("timestamp", string(stats.Cursor))
		req.URL.RawQuery = q.Encode()
	}
	return req, nil
}

// readPayload returns a net.Error as is when the body read times out so the caller can retry.
func (p *Poller) readPayload(resp *http.Response) (review.Payload, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return review.Payload{}, &review.ProtocolError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var payload review.Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return review.Payload{}, err
		}
		return review.Payload{}, &review.DecodeError{Err: err}
	}
	return payload, nil
}

func (p *Poller) count(update func(s *Stats)) {
	p.mu.Lock()
	update(&p.stats)
	p.mu.Unlock()
}

type failureKind int

const (
	failureConnection failureKind = iota
	failureTimeout
	failureCanceled
)

// classify sorts a transport error. Dial and DNS failures count as connection
// failures even when they are timeouts themselves.
func classify(ctx context.Context, err error) failureKind {
	if ctx.Err() != nil {
		return failureCanceled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return failureConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return failureConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failureTimeout
	}
	return failureConnection
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
