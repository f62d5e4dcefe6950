package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-blur/internal/model"
)

// DefaultBlurLevel is used when a request carries no blur level.
const DefaultBlurLevel = 1

// ErrInvalidInput is returned when a request has no usable image locator.
var ErrInvalidInput = errors.New("invalid input")

// notifier presents status updates to the user.
type notifier interface {
	Notify(ctx context.Context, message string)
}

// resolver opens a byte stream for a locator.
type resolver interface {
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

// codec decodes image bytes into a raster.
type codec interface {
	Decode(r io.Reader) (image.Image, error)
}

// blurrer applies a blur of the given level to a raster.
type blurrer interface {
	Blur(img image.Image, level int) image.Image
}

// writer persists a raster and returns the locator of the new resource.
type writer interface {
	Write(ctx context.Context, img image.Image) (string, error)
}

// Messages are the status and log strings the worker emits.
type Messages struct {
	BlurringImage     string
	InvalidInputURI   string
	ErrorApplyingBlur string
	Output            string // format string, receives the output locator
}

// Config configures a BlurWorker.
type Config struct {
	Delay    time.Duration
	Messages Messages
}

// BlurWorker blurs the image a work request points to and reports the
// locator of the blurred copy. It keeps no state between calls.
type BlurWorker struct {
	cfg      Config
	notifier notifier
	resolver resolver
	codec    codec
	blurrer  blurrer
	writer   writer
}

// NewBlurWorker creates a new BlurWorker.
func NewBlurWorker(cfg Config, n notifier, r resolver, c codec, b blurrer, w writer) *BlurWorker {
	return &BlurWorker{
		cfg:      cfg,
		notifier: n,
		resolver: r,
		codec:    c,
		blurrer:  b,
		writer:   w,
	}
}

// Execute runs the work request described by data to completion.
// It returns a success carrying KeyImageURI of the blurred image, or a
// failure if anything went wrong. Errors are logged, never returned.
func (w *BlurWorker) Execute(ctx context.Context, data model.Data) model.Result {
	imageURI := data.String(model.KeyImageURI)
	blurLevel := data.Int(model.KeyBlurLevel, DefaultBlurLevel)

	w.notifier.Notify(ctx, w.cfg.Messages.BlurringImage)

	outputURI, err := w.blur(ctx, imageURI, blurLevel)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("image_uri", imageURI).
			Int("blur_level", blurLevel).
			Msg(w.cfg.Messages.ErrorApplyingBlur)

		return model.Failure()
	}

	return model.Success(model.Data{model.KeyImageURI: outputURI})
}

func (w *BlurWorker) blur(ctx context.Context, imageURI string, blurLevel int) (outputURI string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputURI = ""
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := sleep(ctx, w.cfg.Delay); err != nil {
		return "", err
	}

	if strings.TrimSpace(imageURI) == "" {
		zlog.Logger.Error().Msg(w.cfg.Messages.InvalidInputURI)
		return "", fmt.Errorf("%w: %s", ErrInvalidInput, w.cfg.Messages.InvalidInputURI)
	}

	src, err := w.resolver.Open(ctx, imageURI)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", imageURI, err)
	}
	defer src.Close()

	picture, err := w.codec.Decode(src)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", imageURI, err)
	}

	output := w.blurrer.Blur(picture, blurLevel)

	outputURI, err = w.writer.Write(ctx, output)
	if err != nil {
		return "", fmt.Errorf("failed to write blurred image: %w", err)
	}

	w.notifier.Notify(ctx, fmt.Sprintf(w.cfg.Messages.Output, outputURI))

	return outputURI, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
