package devman

import (
	"context"
	"errors"
	"io"
	"iter"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"review_notification_bot/internal/domain/review"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// step is one scripted round trip: either an error or a status with a body.
type step struct {
	err    error
	status int
	body   string
}

type scriptedTransport struct {
	mu       sync.Mutex
	steps    []step
	requests []*http.Request
}

func (tr *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.requests = append(tr.requests, req)
	if len(tr.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	s := tr.steps[0]
	tr.steps = tr.steps[1:]
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Request:    req,
	}, nil
}

type sleepRecorder struct {
	calls []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

func nullEntry() *logrus.Entry {
	logger, _ := logtest.NewNullLogger()
	return logrus.NewEntry(logger)
}

func newScriptedPoller(tr *scriptedTransport, rec *sleepRecorder) *Poller {
	p := NewPoller("https://api.test", "secret", 7*time.Second, &http.Client{Transport: tr}, nullEntry())
	p.sleep = rec.sleep
	return p
}

func pull(t *testing.T, seq iter.Seq2[review.Payload, error]) (func() (review.Payload, error, bool), func()) {
	t.Helper()
	next, stop := iter.Pull2(seq)
	t.Cleanup(stop)
	return next, stop
}

const foundBody = `{"status": "found", "new_attempts": [{"lesson_title": "A", "lesson_url": "https://x/a", "is_negative": false}], "last_attempt_timestamp": 1555493856.1953}`

func TestPoller_ReadTimeoutRetriesWithoutSleep(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{err: timeoutError{}},
		{status: http.StatusOK, body: foundBody},
	}}
	rec := &sleepRecorder{}
	p := newScriptedPoller(tr, rec)

	next, _ := pull(t, p.Reviews(context.Background()))
	payload, err, ok := next()

	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, review.StatusFound, payload.Status)
	assert.Empty(t, rec.calls)
	assert.Len(t, tr.requests, 2)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Timeouts)
	assert.Equal(t, 0, stats.Reconnects)
	assert.Equal(t, 1, stats.Payloads)
}

func TestPoller_ConnectionFailureSleepsOnce(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}},
		{status: http.StatusOK, body: `{"status": "timeout", "timestamp_to_request": "100"}`},
	}}
	rec := &sleepRecorder{}
	p := newScriptedPoller(tr, rec)

	next, _ := pull(t, p.Reviews(context.Background()))
	payload, err, ok := next()

	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, review.StatusTimeout, payload.Status)
	assert.Equal(t, []time.Duration{7 * time.Second}, rec.calls)
	assert.Equal(t, 1, p.Stats().Reconnects)
}

func TestPoller_DNSFailureIsConnectionFailure(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{err: &net.DNSError{Err: "no such host", Name: "api.test", IsTimeout: true}},
		{status: http.StatusOK, body: `{"status": "timeout", "timestamp_to_request": "100"}`},
	}}
	rec := &sleepRecorder{}
	p := newScriptedPoller(tr, rec)

	next, _ := pull(t, p.Reviews(context.Background()))
	_, err, ok := next()

	require.True(t, ok)
	require.NoError(t, err)
	assert.Len(t, rec.calls, 1)
}

func TestPoller_ServerErrorStopsSequence(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{status: http.StatusInternalServerError, body: "internal error"},
		{status: http.StatusOK, body: foundBody},
	}}
	p := newScriptedPoller(tr, &sleepRecorder{})

	var (
		payloads int
		errs     []error
	)
	for payload, err := range p.Reviews(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_ = payload
		payloads++
	}

	assert.Zero(t, payloads)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], review.ErrProtocol)

	var protoErr *review.ProtocolError
	require.ErrorAs(t, errs[0], &protoErr)
	assert.Equal(t, http.StatusInternalServerError, protoErr.StatusCode)
	assert.Equal(t, "internal error", protoErr.Body)
	assert.Len(t, tr.requests, 1)
}

func TestPoller_MalformedBodyIsDecodeError(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{status: http.StatusOK, body: `<html>oops</html>`},
	}}
	p := newScriptedPoller(tr, &sleepRecorder{})

	next, _ := pull(t, p.Reviews(context.Background()))
	_, err, ok := next()
	require.True(t, ok)
	assert.ErrorIs(t, err, review.ErrDecode)

	_, _, ok = next()
	assert.False(t, ok)
}

func TestPoller_WrongShapeIsDecodeError(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{status: http.StatusOK, body: `{"status": "found", "new_attempts": "nope"}`},
	}}
	p := newScriptedPoller(tr, &sleepRecorder{})

	next, _ := pull(t, p.Reviews(context.Background()))
	_, err, _ := next()
	assert.ErrorIs(t, err, review.ErrDecode)
}

func TestPoller_UnknownStatusAfterYield(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{status: http.StatusOK, body: `{"status": "weird"}`},
	}}
	p := newScriptedPoller(tr, &sleepRecorder{})

	next, _ := pull(t, p.Reviews(context.Background()))
	payload, err, ok := next()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, review.Status("weird"), payload.Status)

	_, err, ok = next()
	require.True(t, ok)
	assert.ErrorIs(t, err, review.ErrProtocol)

	_, _, ok = next()
	assert.False(t, ok)
	assert.Len(t, tr.requests, 1)
}

func TestPoller_CursorAdvancesAgainstServer(t *testing.T) {
	var (
		mu         sync.Mutex
		timestamps []string
		auths      []string
	)
	bodies := []string{
		`{"status": "timeout", "timestamp_to_request": 1555609162.4409}`,
		foundBody,
		`{"status": "timeout"}`,
		`{"status": "timeout", "timestamp_to_request": "1555600000"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "/api/long_polling", r.URL.Path)
		_, hasTimestamp := r.URL.Query()["timestamp"]
		if hasTimestamp {
			timestamps = append(timestamps, r.URL.Query().Get("timestamp"))
		} else {
			timestamps = append(timestamps, "<none>")
		}
		auths = append(auths, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, bodies[len(timestamps)-1])
	}))
	defer srv.Close()

	p := NewPoller(srv.URL+"/api/", "secret", time.Second, srv.Client(), nullEntry())

	count := 0
	for _, err := range p.Reviews(context.Background()) {
		require.NoError(t, err)
		count++
		if count == len(bodies) {
			break
		}
	}

	assert.Equal(t, []string{"<none>", "1555609162.4409", "1555493856.1953", "1555493856.1953"}, timestamps)
	for _, auth := range auths {
		assert.Equal(t, "Token secret", auth)
	}

	// Breaking out of the loop rejects the last payload, so its cursor is never applied.
	stats := p.Stats()
	assert.True(t, stats.HasCursor)
	assert.Equal(t, review.Cursor("1555493856.1953"), stats.Cursor)
	assert.Equal(t, 4, stats.Payloads)
}

func TestPoller_CursorNotAdvancedWhenConsumerStops(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{status: http.StatusOK, body: foundBody},
	}}
	p := newScriptedPoller(tr, &sleepRecorder{})

	for range p.Reviews(context.Background()) {
		break
	}
	assert.False(t, p.Stats().HasCursor)
}

func TestPoller_CancelDuringBackoff(t *testing.T) {
	tr := &scriptedTransport{steps: []step{
		{err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}},
	}}
	p := NewPoller("https://api.test", "secret", time.Hour, &http.Client{Transport: tr}, nullEntry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		for _, err := range p.Reviews(ctx) {
			done <- err
			return
		}
	}()

	require.Eventually(t, func() bool { return p.Stats().Reconnects == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, failureTimeout, classify(ctx, timeoutError{}))
	assert.Equal(t, failureConnection, classify(ctx, &net.OpError{Op: "dial", Err: timeoutError{}}))
	assert.Equal(t, failureConnection, classify(ctx, &net.DNSError{IsTimeout: true}))
	assert.Equal(t, failureConnection, classify(ctx, io.ErrUnexpectedEOF))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, failureCanceled, classify(canceled, timeoutError{}))
}
