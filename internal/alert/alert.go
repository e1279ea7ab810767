package alert

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tripauth/internal/config"
)

// Alert describes an internal failure worth an operator's attention.
type Alert struct {
	Err    error
	User   string
	Action string
	URL    string
}

type urlKey struct{}

// WithURL records the request path that later alerts on ctx refer to.
func WithURL(ctx context.Context, url string) context.Context {
	return context.WithValue(ctx, urlKey{}, url)
}

func URLFromContext(ctx context.Context) string {
	url, _ := ctx.Value(urlKey{}).(string)
	return url
}

func (a Alert) message() string {
	if a.Err == nil {
		return "unknown error"
	}
	return a.Err.Error()
}

// Channel delivers one alert synchronously.
type Channel interface {
	Deliver(ctx context.Context, a Alert) error
}

// Notifier delivers alerts in the background, dropping repeats of the same
// action and message inside the dedup window. Notify never blocks on the
// channel and never reports failure to the caller.
type Notifier struct {
	channel Channel
	timeout time.Duration
	recent  *expirable.LRU[string, struct{}]
	wg      sync.WaitGroup
}

func NewNotifier(channel Channel, timeout, dedupWindow time.Duration, dedupSize int) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	n := &Notifier{channel: channel, timeout: timeout}
	if dedupWindow > 0 && dedupSize > 0 {
		n.recent = expirable.NewLRU[string, struct{}](dedupSize, nil, dedupWindow)
	}
	return n
}

func New(cfg config.AlertConfig) (*Notifier, error) {
	var channel Channel
	switch strings.ToLower(cfg.Type) {
	case "slack":
		ch, err := NewSlackChannel(cfg.Slack, &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second})
		if err != nil {
			return nil, err
		}
		channel = ch
	case "log", "":
		channel = LogChannel{}
	case "none":
		channel = nil
	default:
		return nil, fmt.Errorf("unsupported alert type: %s", cfg.Type)
	}
	return NewNotifier(channel, time.Duration(cfg.TimeoutSeconds)*time.Second,
		time.Duration(cfg.DedupWindowSeconds)*time.Second, cfg.DedupSize), nil
}

func (n *Notifier) Notify(ctx context.Context, a Alert) {
	if n == nil || n.channel == nil {
		return
	}
	if a.URL == "" {
		a.URL = URLFromContext(ctx)
	}
	if n.recent != nil {
		key := a.Action + "|" + a.message()
		if n.recent.Contains(key) {
			logutil.GetLogger(ctx).Debug("alert suppressed", zap.String("action", a.Action))
			return
		}
		n.recent.Add(key, struct{}{})
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := n.channel.Deliver(dctx, a); err != nil {
			logutil.GetLogger(dctx).Error("deliver alert failed", zap.String("action", a.Action), zap.Error(err))
		}
	}()
}

// Close waits for in-flight deliveries.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// LogChannel writes alerts to the application log.
type LogChannel struct{}

func (LogChannel) Deliver(ctx context.Context, a Alert) error {
	logutil.GetLogger(ctx).Error("alert",
		zap.String("action", a.Action),
		zap.String("user", a.User),
		zap.String("url", a.URL),
		zap.String("error", a.message()),
	)
	return nil
}
