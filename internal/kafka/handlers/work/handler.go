package work

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-blur/internal/metrics"
	"github.com/aliskhannn/image-blur/internal/model"
	"github.com/aliskhannn/image-blur/internal/notify"
)

// Errors
var (
	// ErrMissingWorkID is returned for requests that carry no work id in the body or the key.
	ErrMissingWorkID = errors.New("missing work id")
	// ErrPublishResult is returned when a request ran but its result could not be published.
	ErrPublishResult = errors.New("failed to publish result")
)

// worker defines the interface for running a single work request.
type worker interface {
	Execute(ctx context.Context, data model.Data) model.Result
}

// producer defines the interface for publishing work results.
type producer interface {
	Produce(ctx context.Context, key string, v any) error
}

// remover defines the interface for removing outputs that were never delivered.
type remover interface {
	Delete(ctx context.Context, locator string) error
}

// Handler handles Kafka messages carrying work requests.
// It runs each request once and publishes its result.
type Handler struct {
	worker   worker
	producer producer
	remover  remover
}

// NewHandler creates a new handler with the given worker, result producer
// and the remover used to discard outputs whose result could not be published.
func NewHandler(w worker, p producer, r remover) *Handler {
	return &Handler{worker: w, producer: p, remover: r}
}

// Handle processes a Kafka message containing a work request.
// It unmarshals the message, runs the worker and publishes the result.
// Failed work is reported through the result, not as an error. If the result
// cannot be published, the output is removed and an error wrapping
// ErrPublishResult is returned so the message can be handled again.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var req model.WorkMessage
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("unmarshal work request: %w", err)
	}

	if req.ID == uuid.Nil {
		id, err := uuid.ParseBytes(msg.Key)
		if err != nil {
			return ErrMissingWorkID
		}
		req.ID = id
	}

	start := time.Now()
	res := h.worker.Execute(notify.WithWorkID(ctx, req.ID), req.Data)
	metrics.ObserveResult(res.Status, time.Since(start))

	out := model.ResultMessage{
		ID:     req.ID,
		Status: res.Status,
		Data:   res.Output,
	}

	if err := h.producer.Produce(ctx, req.ID.String(), out); err != nil {
		if res.Succeeded() {
			h.discard(ctx, req.ID, res.Output.String(model.KeyImageURI))
		}

		return fmt.Errorf("%w: %w", ErrPublishResult, err)
	}

	zlog.Logger.Info().
		Str("work_id", req.ID.String()).
		Str("status", string(res.Status)).
		Msg("work request processed")

	return nil
}

// discard removes an output nobody will be told about.
func (h *Handler) discard(ctx context.Context, id uuid.UUID, locator string) {
	if h.remover == nil || locator == "" {
		return
	}

	if err := h.remover.Delete(context.WithoutCancel(ctx), locator); err != nil {
		zlog.Logger.Err(err).
			Str("work_id", id.String()).
			Str("image_uri", locator).
			Msg("failed to remove undelivered output")
	}
}
