package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/alert-fanout/internal/channel"
	"github.com/afikmenashe/alert-fanout/internal/events"
	"github.com/afikmenashe/alert-fanout/internal/failure"
)

type subscribeCall struct {
	address string
	class   events.AlertClass
}

type publishCall struct {
	class events.AlertClass
	text  string
}

// fakeRegistry is a test fake for TopicRegistry. It is safe for concurrent use.
type fakeRegistry struct {
	mu             sync.Mutex
	subscribeCalls []subscribeCall
	publishCalls   []publishCall
	// subscribeErrs and publishErrs fail calls for a given address or text.
	subscribeErrs map[string]error
	publishErrs   map[string]error
	// publishFailures fails the first n publishes of a given text.
	publishFailures map[string]int
	// block makes every call wait for ctx to be done.
	block bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		subscribeErrs:   make(map[string]error),
		publishErrs:     make(map[string]error),
		publishFailures: make(map[string]int),
	}
}

func (f *fakeRegistry) wait(ctx context.Context, op string) error {
	if !f.block {
		return nil
	}
	<-ctx.Done()
	return failure.New(failure.TransportUnavailable, op, ctx.Err())
}

func (f *fakeRegistry) Subscribe(ctx context.Context, address string, class events.AlertClass) (channel.SubscriptionHandle, error) {
	if err := f.wait(ctx, "subscribe"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls = append(f.subscribeCalls, subscribeCall{address: address, class: class})
	if err := f.subscribeErrs[address]; err != nil {
		return "", err
	}
	return channel.SubscriptionHandle(fmt.Sprintf("sub-%d", len(f.subscribeCalls))), nil
}

func (f *fakeRegistry) Publish(ctx context.Context, class events.AlertClass, text string) (channel.MessageID, error) {
	if err := f.wait(ctx, "publish"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishCalls = append(f.publishCalls, publishCall{class: class, text: text})
	if err := f.publishErrs[text]; err != nil {
		return "", err
	}
	if n := f.publishFailures[text]; n > 0 {
		f.publishFailures[text] = n - 1
		return "", failure.Newf(failure.TransportUnavailable, "publish", "connection reset")
	}
	return channel.MessageID(fmt.Sprintf("msg-%d", len(f.publishCalls))), nil
}

func (f *fakeRegistry) subscribes() []subscribeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]subscribeCall(nil), f.subscribeCalls...)
}

func (f *fakeRegistry) publishes() []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishCall(nil), f.publishCalls...)
}

// fakeMetrics is a test fake for MetricsRecorder.
type fakeMetrics struct {
	mu        sync.Mutex
	received  int
	processed int
	published int
	errors    int
	custom    map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{custom: make(map[string]int)}
}

func (f *fakeMetrics) RecordReceived() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received++
}

func (f *fakeMetrics) RecordProcessed(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed++
}

func (f *fakeMetrics) RecordPublished() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published++
}

func (f *fakeMetrics) RecordError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors++
}

func (f *fakeMetrics) IncrementCustom(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.custom[name]++
}

func (f *fakeMetrics) customCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.custom[name]
}

// fakeReader is a test fake for MessageReader. Once every message has been
// read it calls onDrained and blocks until ctx is done.
type fakeReader struct {
	mu          sync.Mutex
	messages    []*kafka.Message
	readIndex   int
	commits     []int64
	commitErr   error
	onDrained   func()
	closeCalled bool
}

func newFakeReader(payloads ...string) *fakeReader {
	f := &fakeReader{}
	for _, p := range payloads {
		f.messages = append(f.messages, &kafka.Message{
			Topic:  "changes",
			Offset: int64(len(f.messages)),
			Value:  []byte(p),
		})
	}
	return f
}

func (f *fakeReader) ReadMessage(ctx context.Context) (*kafka.Message, error) {
	f.mu.Lock()
	if f.readIndex < len(f.messages) {
		msg := f.messages[f.readIndex]
		f.readIndex++
		f.mu.Unlock()
		return msg, nil
	}
	drained := f.onDrained
	f.mu.Unlock()

	if drained != nil {
		drained()
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeReader) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, msg.Offset)
	return f.commitErr
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalled = true
	return nil
}

func (f *fakeReader) committed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.commits...)
}
