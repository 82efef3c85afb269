package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/Eiga/internal/pkg/redis"
	logger "github.com/Gopher0727/Eiga/middleware/log"
)

// ErrNotDelivered is what callers that need an error get for a false Publish.
var ErrNotDelivered = errors.New("realtime event not delivered")

// Publisher delivers one event to the topic of its subject. It reports
// failure as false and never returns an error.
type Publisher interface {
	Publish(ctx context.Context, ev Event) bool
}

// RedisPublisher joins the subject's topic, waits for the join confirmation
// for at most joinTimeout, publishes one message and leaves again.
type RedisPublisher struct {
	client      redis.PubSubClient
	joinTimeout time.Duration
	log         *logger.Logger
}

func NewRedisPublisher(client redis.PubSubClient, joinTimeout time.Duration, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:      client,
		joinTimeout: joinTimeout,
		log:         log.Named("fanout"),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) bool {
	if ev.SubjectID == "" {
		return false
	}
	topic := Topic(ev.SubjectID)

	sub, err := p.client.Join(ctx, p.joinTimeout, topic)
	if err != nil {
		p.log.WarnContext(ctx, "join topic failed", zap.String("topic", topic), zap.Error(err))
		return false
	}
	defer sub.Close()

	sendCtx, cancel := context.WithTimeout(ctx, p.joinTimeout)
	defer cancel()
	if err := p.client.PublishJSON(sendCtx, topic, ev); err != nil {
		p.log.WarnContext(ctx, "publish event failed", zap.String("topic", topic), zap.String("kind", string(ev.Kind)), zap.Error(err))
		return false
	}

	p.log.DebugContext(ctx, "event published", zap.String("topic", topic), zap.String("kind", string(ev.Kind)))
	return true
}

// Recorder keeps every published event in memory. Tests and single-process
// setups without Redis use it.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailNext makes every following Publish report false.
func (r *Recorder) FailNext(fail bool) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func (r *Recorder) Publish(_ context.Context, ev Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return false
	}
	r.events = append(r.events, ev)
	return true
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
