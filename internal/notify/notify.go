package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-blur/internal/model"
)

type workIDKey struct{}

// WithWorkID returns a copy of ctx carrying the id of the work request being processed.
func WithWorkID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, workIDKey{}, id)
}

// WorkID returns the work id stored in ctx, or uuid.Nil.
func WorkID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(workIDKey{}).(uuid.UUID)
	return id
}

// publisher defines the interface for sending status messages to a message broker.
type publisher interface {
	Produce(ctx context.Context, key string, v any) error
}

// Notifier presents status updates of a running work request.
// Every update is logged; if a publisher is set it is also published to the
// status topic. Notify never fails.
type Notifier struct {
	title     string
	publisher publisher
	now       func() time.Time
}

// New creates a new Notifier. p may be nil, in which case updates are only logged.
func New(title string, p publisher) *Notifier {
	return &Notifier{
		title:     title,
		publisher: p,
		now:       time.Now,
	}
}

// Notify presents message as a status update.
func (n *Notifier) Notify(ctx context.Context, message string) {
	id := WorkID(ctx)

	zlog.Logger.Info().
		Str("work_id", id.String()).
		Str("title", n.title).
		Msg(message)

	if n.publisher == nil {
		return
	}

	status := model.StatusMessage{
		WorkID:  id,
		Title:   n.title,
		Message: message,
		Time:    n.now().UTC(),
	}

	if err := n.publisher.Produce(ctx, id.String(), status); err != nil {
		zlog.Logger.Err(err).
			Str("work_id", id.String()).
			Msg("failed to publish status notification")
	}
}
