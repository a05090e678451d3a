package nats

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/pkg/model"
	"github.com/mpapenbr/qualipredict/pkg/utils/broadcast"
)

const DefaultSubjectPrefix = "predictions"

// MsgPublisher is satisfied by *nats.Conn
type MsgPublisher interface {
	Publish(subj string, data []byte) error
}

type Option func(*Publisher)

func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

// WithKeyValue additionally stores the latest run per circuit in kv,
// keyed by the circuit slug.
func WithKeyValue(kv jetstream.KeyValue) Option {
	return func(p *Publisher) {
		p.kv = kv
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

// Publisher forwards every run of the prediction feed to nats.
type Publisher struct {
	conn   MsgPublisher
	feed   broadcast.BroadcastServer[*model.PredictionRun]
	kv     jetstream.KeyValue
	prefix string
	l      *log.Logger
	done   chan struct{}
}

//nolint:whitespace // editor/linter issue
func NewPublisher(
	conn MsgPublisher,
	feed broadcast.BroadcastServer[*model.PredictionRun],
	opts ...Option,
) *Publisher {
	ret := &Publisher{
		conn:   conn,
		feed:   feed,
		prefix: DefaultSubjectPrefix,
		l:      log.Default().Named("nats"),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Slug converts a circuit name into a subject token.
func Slug(circuit string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(circuit)), " ", "-")
}

func (p *Publisher) Subject(circuit string) string {
	return p.prefix + "." + Slug(circuit)
}

// Start subscribes to the feed and publishes until ctx is done or the feed
// is closed. Wait blocks until that happened.
func (p *Publisher) Start(ctx context.Context) {
	dataChan := p.feed.Subscribe()
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.feed.CancelSubscription(dataChan)
				p.l.Debug("publisher stopped")
				return
			case run, ok := <-dataChan:
				if !ok {
					p.l.Debug("feed closed")
					return
				}
				p.publish(ctx, run)
			}
		}
	}()
}

func (p *Publisher) Wait() {
	<-p.done
}

func (p *Publisher) publish(ctx context.Context, run *model.PredictionRun) {
	data, err := json.Marshal(run)
	if err != nil {
		p.l.Error("error marshalling run", log.String("id", run.ID), log.ErrorField(err))
		return
	}
	subj := p.Subject(run.Circuit)
	if err := p.conn.Publish(subj, data); err != nil {
		p.l.Error("error publishing run",
			log.String("subject", subj),
			log.ErrorField(err))
		return
	}
	p.l.Debug("published run", log.String("subject", subj), log.String("id", run.ID))
	if p.kv == nil {
		return
	}
	putCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := p.kv.Put(putCtx, Slug(run.Circuit), data); err != nil {
		p.l.Warn("error storing latest run",
			log.String("key", Slug(run.Circuit)),
			log.ErrorField(err))
	}
}
