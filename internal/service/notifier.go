package service

import (
	"context"
	"fmt"

	"github.com/Gopher0727/Eiga/internal/outbox"
	"github.com/Gopher0727/Eiga/internal/realtime"
)

// IDGenerator hands out comment and reaction identifiers.
type IDGenerator interface {
	NextID() (int64, error)
}

// notifier queues a fan-out publish after the mutation has committed. The
// publish result only ever reaches the outbox log.
type notifier struct {
	outbox    outbox.Outbox
	publisher realtime.Publisher
}

func (n notifier) announce(ev realtime.Event) {
	n.outbox.Enqueue(string(ev.Kind), func(ctx context.Context) error {
		if !n.publisher.Publish(ctx, ev) {
			return fmt.Errorf("%w: %s on %s", realtime.ErrNotDelivered, ev.Kind, ev.SubjectID)
		}
		return nil
	})
}
