package acquisition

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nichescout/nichescout/internal/ratelimit"
)

const (
	// Bounded exponential backoff for 429/5xx responses.
	maxAttempts  = 3
	backoffBase  = 500 * time.Millisecond
	responseCap  = 4 << 20 // 4 MiB guard against runaway bodies
	probeTimeout = 2 * time.Second
	probeMaxAge  = 30 * time.Second
)

// call is one in-flight deduplicated request. Followers wait on done and
// read res afterwards.
type call struct {
	done chan struct{}
	res  Result
}

// Orchestrator wraps raw HTTP calls with the rate governor, in-flight
// deduplication and an availability probe. One orchestrator per upstream
// source; all of a source's clients share it.
type Orchestrator struct {
	governor   *ratelimit.Governor
	httpClient *http.Client
	log        zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]*call

	probeURL     string
	probeMu      sync.Mutex
	probeResult  bool
	probeChecked time.Time

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. probeURL may be empty to disable the
// availability probe (Available then always reports true).
func New(governor *ratelimit.Governor, timeout time.Duration, probeURL string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		governor:   governor,
		httpClient: &http.Client{Timeout: timeout},
		probeURL:   probeURL,
		log:        log.With().Str("component", "acquisition").Logger(),
		inFlight:   make(map[string]*call),
		sleep:      sleepCtx,
	}
}

// errProbeDown marks a call that was short-circuited because the upstream
// failed its availability probe.
var errProbeDown = errors.New("upstream availability probe failing")

// Fetch performs one governed HTTP call. While the availability probe
// reports the upstream down, calls fail fast without burning a governor
// slot or the retry budget. Otherwise it acquires a governor slot,
// releases it when the transport finishes, and retries 429/5xx with
// bounded exponential backoff. The returned Result never carries a Go
// error for the caller to branch on - the Kind is the contract.
func (o *Orchestrator) Fetch(ctx context.Context, method, url string, body []byte) Result {
	if !o.Available(ctx) {
		return Result{Kind: KindUnavailable, Err: errProbeDown}
	}
	if err := o.governor.Acquire(ctx); err != nil {
		return Result{Kind: KindUnavailable, Err: err}
	}
	defer o.governor.Release()

	var last Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = o.doOnce(ctx, method, url, body)
		if !retryable(last) {
			return last
		}
		if attempt == maxAttempts {
			break
		}
		wait := backoffBase << (attempt - 1)
		o.log.Debug().
			Str("url", url).
			Int("attempt", attempt).
			Int("status", last.Status).
			Dur("backoff", wait).
			Msg("Retrying upstream call")
		if err := o.sleep(ctx, wait); err != nil {
			return Result{Kind: KindUnavailable, Err: err}
		}
	}

	if last.Status == http.StatusTooManyRequests {
		last.Kind = KindRateLimited
	}
	return last
}

// doOnce performs a single HTTP round trip.
func (o *Orchestrator) doOnce(ctx context.Context, method, url string, body []byte) Result {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Result{Kind: KindUnavailable, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; nichescout/1.0)")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		kind := classify(err)
		o.log.Warn().Err(err).Str("url", url).Str("kind", kind.String()).Msg("Upstream request failed")
		return Result{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseCap))
	if err != nil {
		return Result{Status: resp.StatusCode, Kind: KindUnavailable, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyStr := string(data)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		o.log.Warn().
			Int("status_code", resp.StatusCode).
			Str("url", url).
			Str("response_body", bodyStr).
			Msg("Upstream returned non-2xx status")
		return Result{
			Status: resp.StatusCode,
			Kind:   KindUnavailable,
			Err:    newStatusError(resp.StatusCode),
		}
	}

	return Result{Body: data, Status: resp.StatusCode}
}

// Deduplicated collapses concurrent identical requests. If a call keyed
// identically is already in flight, every caller receives the original
// call's result rather than issuing a duplicate request. The key is evicted
// exactly once, in a defer, when the original completes - success or failure.
func (o *Orchestrator) Deduplicated(ctx context.Context, key string, fn func(ctx context.Context) Result) Result {
	o.mu.Lock()
	if existing, ok := o.inFlight[key]; ok {
		o.mu.Unlock()
		select {
		case <-existing.done:
			return existing.res
		case <-ctx.Done():
			return Result{Kind: KindUnavailable, Err: ctx.Err()}
		}
	}

	c := &call{done: make(chan struct{})}
	o.inFlight[key] = c
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inFlight, key)
		o.mu.Unlock()
		close(c.done)
	}()

	c.res = fn(ctx)
	return c.res
}

// Available reports whether the upstream answers its health probe. The
// verdict is cached for a short period so bulk scoring does not hammer the
// probe endpoint. With no probe URL configured it always reports true.
func (o *Orchestrator) Available(ctx context.Context) bool {
	if o.probeURL == "" {
		return true
	}

	o.probeMu.Lock()
	defer o.probeMu.Unlock()

	if time.Since(o.probeChecked) < probeMaxAge {
		return o.probeResult
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, o.probeURL, nil)
	if err != nil {
		o.probeResult = false
		o.probeChecked = time.Now()
		return false
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.log.Warn().Err(err).Msg("Availability probe failed")
		o.probeResult = false
		o.probeChecked = time.Now()
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	o.probeResult = resp.StatusCode < 500
	o.probeChecked = time.Now()
	return o.probeResult
}

// retryable reports whether a result warrants another attempt.
func retryable(r Result) bool {
	if r.Kind == KindNone {
		return false
	}
	if r.Status == http.StatusTooManyRequests || r.Status >= 500 {
		return true
	}
	// Plain network failures are retried too; timeouts are not, the
	// request budget is already spent. Cancellation arrives wrapped in a
	// *url.Error, so unwrap before comparing.
	return r.Kind == KindUnavailable && r.Status == 0 && r.Err != nil && !errors.Is(r.Err, context.Canceled)
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// statusError reports a non-2xx upstream status.
type statusError struct {
	status int
}

func newStatusError(status int) error { return &statusError{status: status} }

func (e *statusError) Error() string {
	return http.StatusText(e.status) + " from upstream"
}
