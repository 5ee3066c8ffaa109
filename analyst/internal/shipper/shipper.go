package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/bizpulse/bizpulse/analyst/internal/collect"
	"github.com/bizpulse/bizpulse/analyst/internal/config"
	"github.com/bizpulse/bizpulse/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second

	// IngestPath is the server route that accepts shipped snapshots.
	IngestPath = "/api/v1/analyses"
)

// Shipper buffers outcomes and ships them to bizpulse-server.
// Ship() is non-blocking; when the buffer is full the oldest snapshot is evicted.
// Run() must be called in a goroutine to drain the buffer and handle retries.
type Shipper struct {
	cfg    config.AnalystConfig
	url    string
	buf    chan types.Snapshot
	client *http.Client
}

// New creates a Shipper using the given analyst config.
func New(cfg config.AnalystConfig) *Shipper {
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultBufferSize
	}
	return &Shipper{
		cfg:    cfg,
		url:    strings.TrimRight(cfg.ServerEndpoint, "/") + IngestPath,
		buf:    make(chan types.Snapshot, size),
		client: &http.Client{Timeout: sendTimeout},
	}
}

// Ship converts an outcome to a snapshot and enqueues it.
// If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(out *collect.Outcome) {
	s.enqueue(out.ToSnapshot())
}

func (s *Shipper) enqueue(snap types.Snapshot) {
	for {
		select {
		case s.buf <- snap:
			return
		default:
		}
		// Buffer full: drop the oldest snapshot, keep the newest.
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest snapshot",
				"source", old.SourceID, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Pending returns the number of buffered snapshots.
func (s *Shipper) Pending() int { return len(s.buf) }

// Send delivers one outcome synchronously, without buffering or retries.
func (s *Shipper) Send(ctx context.Context, out *collect.Outcome) error {
	return s.post(ctx, out.ToSnapshot())
}

// Run drains the buffer, sending snapshots to the server.
// Transient failures are retried with exponential backoff.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		select {
		case <-ctx.Done():
			return

		case snap := <-s.buf:
			err := s.post(ctx, snap)
			if err == nil {
				slog.Debug("shipper: snapshot delivered", "source", snap.SourceID)
				bo.reset()
				continue
			}
			if ctx.Err() != nil {
				return
			}

			var perm *permanentError
			if errors.As(err, &perm) {
				slog.Error("shipper: server rejected snapshot, discarding",
					"source", snap.SourceID, "err", err)
				continue
			}

			// Requeue unless newer data has filled the buffer in the meantime.
			select {
			case s.buf <- snap:
			default:
			}

			wait := bo.next()
			slog.Warn("shipper: send failed, will retry",
				"endpoint", s.url,
				"err", err,
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}
}

// permanentError marks a response that retrying cannot fix.
type permanentError struct {
	status int
	msg    string
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.status, e.msg)
}

// post sends one snapshot to the ingest endpoint.
func (s *Shipper) post(ctx context.Context, snap types.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return &permanentError{msg: fmt.Sprintf("encode snapshot: %v", err)}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("shipper: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ServerAuth.Mode == "apikey" && s.cfg.ServerAuth.KeyEnv != "" {
		req.Header.Set(s.cfg.ServerAuth.EffectiveHeader(), s.cfg.ServerAuth.Key())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("shipper: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if isPermanentStatus(resp.StatusCode) {
		return &permanentError{status: resp.StatusCode, msg: strings.TrimSpace(string(msg))}
	}
	return fmt.Errorf("shipper: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

// isPermanentStatus returns true for statuses that indicate the snapshot
// itself (or the credentials) are unacceptable and should not be retried.
func isPermanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
