package cachetag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultNotifyTimeout = 5 * time.Second
	defaultQueueSize     = 256

	// SecretHeader carries the shared revalidation secret.
	SecretHeader = "X-Revalidate-Secret"
)

// HTTPNotifierConfig configures an HTTPNotifier.
type HTTPNotifierConfig struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	QueueSize  int
	HTTPClient *http.Client
}

// revalidateRequest is the webhook body.
type revalidateRequest struct {
	Tags []string `json:"tags"`
}

// HTTPNotifier posts invalidated keys to a revalidation webhook from a
// background worker. Notify never blocks; batches are dropped when the
// queue is full.
type HTTPNotifier struct {
	url    string
	secret string
	client *http.Client
	queue  chan []string

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewHTTPNotifier creates a notifier. Call Start before use and Close on
// shutdown.
func NewHTTPNotifier(cfg HTTPNotifierConfig) *HTTPNotifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultNotifyTimeout
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPNotifier{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: client,
		queue:  make(chan []string, size),
	}
}

// Notify enqueues keys for delivery.
func (n *HTTPNotifier) Notify(_ context.Context, keys []string) {
	batch := make([]string, len(keys))
	copy(batch, keys)
	select {
	case n.queue <- batch:
	default:
		slog.Warn("cachetag: notify queue full, dropping batch", "keys", keys)
	}
}

// Start launches the delivery worker.
func (n *HTTPNotifier) Start() {
	n.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		n.cancel = cancel
		n.done = make(chan struct{})

		go func() {
			defer close(n.done)
			for {
				select {
				case <-ctx.Done():
					return
				case keys := <-n.queue:
					if err := n.send(ctx, keys); err != nil {
						slog.Warn("cachetag: revalidation webhook failed", "keys", keys, "error", err)
					}
				}
			}
		}()
	})
}

// Close stops the worker and waits for it to exit. Undelivered batches are
// discarded. It is safe to call Close even if Start was never called.
func (n *HTTPNotifier) Close() error {
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
	return nil
}

func (n *HTTPNotifier) send(ctx context.Context, keys []string) error {
	body, err := json.Marshal(revalidateRequest{Tags: keys})
	if err != nil {
		return fmt.Errorf("encoding revalidation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating revalidation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(SecretHeader, n.secret)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting revalidation request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("revalidation webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Verify interface compliance.
var _ Notifier = (*HTTPNotifier)(nil)
