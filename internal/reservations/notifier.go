// Package reservations releases inventory holds taken when a checkout session was created.
package reservations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

const (
	defaultTimeout             = 5 * time.Second
	responseBodyReadLimit int64 = 1024
)

// Recorder receives release failure counts.
type Recorder interface {
	IncReleaseFailure()
}

// Notifier calls the reservation service to drop the hold for a session.
type Notifier struct {
	httpClient *http.Client
	releaseURL string
	timeout    time.Duration
	metrics    Recorder
	logg       *logger.Logger
}

// Option configures optional notifier behavior.
type Option func(*Notifier)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		if client != nil {
			n.httpClient = client
		}
	}
}

// WithRecorder wires failure metrics.
func WithRecorder(r Recorder) Option {
	return func(n *Notifier) {
		n.metrics = r
	}
}

// NewNotifier builds a notifier. An empty releaseURL disables releases.
func NewNotifier(releaseURL string, timeout time.Duration, logg *logger.Logger, opts ...Option) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	n := &Notifier{
		httpClient: &http.Client{},
		releaseURL: strings.TrimSpace(releaseURL),
		timeout:    timeout,
		logg:       logg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Enabled reports whether a release endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.releaseURL != ""
}

// Release is best effort: failures are logged and swallowed.
func (n *Notifier) Release(ctx context.Context, sessionID string) {
	if !n.Enabled() || strings.TrimSpace(sessionID) == "" {
		return
	}
	if err := n.release(ctx, sessionID); err != nil {
		if n.metrics != nil {
			n.metrics.IncReleaseFailure()
		}
		n.logg.Warn(n.logg.WithField(ctx, "error", err.Error()), "reservation release failed")
		return
	}
	n.logg.Debug(ctx, "reservation released")
}

func (n *Notifier) release(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"session_id": sessionID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal release request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, n.releaseURL, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build release request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute release request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("release returned status %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": strings.TrimSpace(string(body))})
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
