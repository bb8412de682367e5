package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Workers     int           `default:"2" desc:"Delivery workers"`
	QueueSize   int           `split_words:"true" default:"256" desc:"Pending notifications before new ones are dropped"`
	MaxAttempts int           `split_words:"true" default:"3" desc:"Delivery attempts per sink"`
	Backoff     time.Duration `default:"500ms" desc:"Base delay between attempts"`
	WebhookURL  string        `split_words:"true" desc:"Optional JSON webhook endpoint"`
	SMTP        SMTPConfig
}

// LoadConfig reads NOTIFY_* variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("notify", &cfg); err != nil {
		return Config{}, fmt.Errorf("notify config: %w", err)
	}
	return cfg, nil
}

// Dispatcher delivers notifications in the background once the originating
// change has committed. Delivery failures are logged and never reach callers.
type Dispatcher struct {
	sinks []Sink
	cfg   Config
	queue chan domain.Notification

	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(cfg Config, sinks ...Sink) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sinks:  sinks,
		cfg:    cfg,
		queue:  make(chan domain.Notification, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Enqueue never blocks. When the queue is full the notification is dropped.
func (d *Dispatcher) Enqueue(_ context.Context, ns ...domain.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, n := range ns {
		if d.closed {
			slog.Warn("Notification dropped, dispatcher closed", "id", n.ID, "kind", n.Kind)
			continue
		}
		select {
		case d.queue <- n:
		default:
			slog.Warn("Notification dropped, queue full", "id", n.ID, "kind", n.Kind, "recipient", n.RecipientID)
		}
	}
}

// Close stops intake and waits for queued notifications until ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		for _, s := range d.sinks {
			d.deliver(s, n)
		}
	}
}

func (d *Dispatcher) deliver(s Sink, n domain.Notification) {
	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if err = s.Deliver(d.ctx, n); err == nil {
			return
		}
		if attempt == d.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(d.cfg.Backoff * time.Duration(attempt)):
		case <-d.ctx.Done():
			slog.Warn("Notification abandoned on shutdown", "sink", s.Name(), "id", n.ID)
			return
		}
	}
	slog.Error("Failed to deliver notification",
		"sink", s.Name(),
		"id", n.ID,
		"kind", n.Kind,
		"attempts", d.cfg.MaxAttempts,
		"error", err)
}
