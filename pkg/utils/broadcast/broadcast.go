package broadcast

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/qualipredict/log"
)

// see https://betterprogramming.pub/how-to-broadcast-messages-in-go-using-channels-b68f42bdf32e

type BroadcastServer[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type (
	Option[T any]          func(*broadcastServer[T])
	broadcastServer[T any] struct {
		name           string
		source         <-chan T
		listeners      []chan T
		addListener    chan chan T
		removeListener chan (<-chan T)
		ctx            context.Context
		cancel         context.CancelFunc
		closeOnce      sync.Once
		sendTimeout    time.Duration
		l              *log.Logger
		numRcv         atomic.Int64
		numSnd         atomic.Int64
		numSkip        atomic.Int64
		numListener    atomic.Int64
	}
)

// WithSendTimeout sets the duration a listener may block before the message
// is skipped for this listener
func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(b *broadcastServer[T]) {
		b.sendTimeout = d
	}
}

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(b *broadcastServer[T]) {
		b.l = l
	}
}

func NewBroadcastServer[T any](name string, source <-chan T, opts ...Option[T]) BroadcastServer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		sendTimeout:    50 * time.Millisecond,
		l:              log.Default().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setupMetrics()
	go b.serve()
	return b
}

// Subscribe returns a channel receiving all messages from now on.
// The channel is closed when the subscription is cancelled or the server is closed.
func (b *broadcastServer[T]) Subscribe() <-chan T {
	ch := make(chan T)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

// Close stops the server and closes all listener channels.
// Calling Close more than once is a no-op.
func (b *broadcastServer[T]) Close() {
	b.closeOnce.Do(func() {
		b.l.Info("Closing broadcast server",
			log.String("name", b.name),
			log.Int64("rcv", b.numRcv.Load()),
			log.Int64("snd", b.numSnd.Load()),
			log.Int64("skip", b.numSkip.Load()))
		b.cancel()
	})
}

func (b *broadcastServer[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("qp.broadcast.%s", b.name))
	register := func(metricName, desc string, value *atomic.Int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load(),
					metric.WithAttributes(attribute.String("name", b.name)))
				return nil
			})); err != nil {
			b.l.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	register("qp.broadcast.rcv", "Number of received messages", &b.numRcv)
	register("qp.broadcast.snd", "Number of sent messages", &b.numSnd)
	register("qp.broadcast.skip", "Number of skipped messages", &b.numSkip)
	register("qp.broadcast.listener", "Number of listeners", &b.numListener)
}

//nolint:cyclop // select loop
func (b *broadcastServer[T]) serve() {
	defer func() {
		b.l.Debug("Closing listeners", log.String("name", b.name))
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.numListener.Store(0)
	}()
	for {
		select {
		case <-b.ctx.Done():
			b.l.Debug("broadcast server about to be closed", log.String("name", b.name))
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListener.Store(int64(len(b.listeners)))
		case ch := <-b.removeListener:
			idx := slices.IndexFunc(b.listeners, func(l chan T) bool { return l == ch })
			if idx >= 0 {
				close(b.listeners[idx])
				b.listeners = slices.Delete(b.listeners, idx, idx+1)
				b.numListener.Store(int64(len(b.listeners)))
				b.l.Debug("removed listener",
					log.String("name", b.name), log.Int("len", len(b.listeners)))
			}
		case msg, ok := <-b.source:
			if !ok {
				b.l.Debug("source closed", log.String("name", b.name))
				return
			}
			b.numRcv.Add(1)
			for _, listener := range b.listeners {
				select {
				case listener <- msg:
					b.numSnd.Add(1)
				case <-time.After(b.sendTimeout):
					b.numSkip.Add(1)
				}
			}
		}
	}
}
