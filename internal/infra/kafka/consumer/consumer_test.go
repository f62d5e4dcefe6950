package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/image-blur/internal/kafka/handlers/work"
	"github.com/aliskhannn/image-blur/internal/model"
)

// fakeClient serves queued messages and blocks once they run out.
type fakeClient struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
}

func (f *fakeClient) Fetch(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.messages) > 0 {
		msg := f.messages[0]
		f.messages = f.messages[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeClient) Commit(_ context.Context, msg kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msg.Offset)
	return nil
}

func (f *fakeClient) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

type fakeHandler struct {
	mu      sync.Mutex
	handled []string
	failOn  string
}

func (f *fakeHandler) Handle(_ context.Context, msg kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, string(msg.Value))
	if string(msg.Value) == f.failOn {
		return errors.New("malformed")
	}
	return nil
}

func TestConsume(t *testing.T) {
	client := &fakeClient{messages: []kafka.Message{
		{Offset: 1, Value: []byte("first")},
		{Offset: 2, Value: []byte("broken")},
		{Offset: 3, Value: []byte("third")},
	}}
	h := &fakeHandler{failOn: "broken"}

	c := &Consumer{
		client:   client,
		handler:  h,
		topic:    "blur-requests",
		strategy: retry.Strategy{Attempts: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	require.Eventually(t, func() bool {
		return len(client.commits()) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()

	assert.Equal(t, []string{"first", "broken", "third"}, h.handled)
	assert.Equal(t, []int64{1, 2, 3}, client.commits())
}

func TestConsumeStopsOnCanceledContext(t *testing.T) {
	c := &Consumer{
		client:   &fakeClient{},
		handler:  &fakeHandler{},
		strategy: retry.Strategy{Attempts: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	wg.Add(1)

	done := make(chan struct{})
	go func() {
		c.Consume(ctx, &wg)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

type blurringWorker struct {
	mu   sync.Mutex
	runs int
}

func (w *blurringWorker) Execute(context.Context, model.Data) model.Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs++
	return model.Success(model.Data{model.KeyImageURI: "file:///tmp/blurred.png"})
}

func (w *blurringWorker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// flakyProducer fails the first failures sends, or every send if failures is negative.
type flakyProducer struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	published int
}

func (p *flakyProducer) Produce(context.Context, string, any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.failures < 0 || p.attempts <= p.failures {
		return errors.New("broker down")
	}
	p.published++
	return nil
}

func (p *flakyProducer) stats() (attempts, published int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts, p.published
}

type recordingRemover struct {
	mu      sync.Mutex
	deleted []string
}

func (r *recordingRemover) Delete(_ context.Context, locator string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, locator)
	return nil
}

func (r *recordingRemover) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deleted)
}

func workMessage(offset int64) kafka.Message {
	return kafka.Message{
		Offset: offset,
		Value:  []byte(`{"id":"` + uuid.NewString() + `","data":{"KEY_IMAGE_URI":"file:///tmp/in.png"}}`),
	}
}

func TestConsumeDoesNotCommitUndeliveredResults(t *testing.T) {
	client := &fakeClient{messages: []kafka.Message{workMessage(7)}}
	w := &blurringWorker{}
	p := &flakyProducer{failures: -1}
	r := &recordingRemover{}

	c := &Consumer{
		client:   client,
		handler:  work.NewHandler(w, p, r),
		strategy: retry.Strategy{Attempts: 1},
		backoff:  time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	require.Eventually(t, func() bool {
		return w.count() >= 2
	}, time.Second, time.Millisecond)

	cancel()
	wg.Wait()

	assert.Empty(t, client.commits())
	assert.Equal(t, w.count(), r.count())
}

func TestConsumeCommitsOnceResultIsDelivered(t *testing.T) {
	client := &fakeClient{messages: []kafka.Message{workMessage(7)}}
	w := &blurringWorker{}
	p := &flakyProducer{failures: 2}
	r := &recordingRemover{}

	c := &Consumer{
		client:   client,
		handler:  work.NewHandler(w, p, r),
		strategy: retry.Strategy{Attempts: 1},
		backoff:  time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	require.Eventually(t, func() bool {
		return len(client.commits()) == 1
	}, time.Second, time.Millisecond)

	cancel()
	wg.Wait()

	attempts, published := p.stats()
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, published)
	assert.Equal(t, 3, w.count())
	assert.Equal(t, 2, r.count())
	assert.Equal(t, []int64{7}, client.commits())
}
