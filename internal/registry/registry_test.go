package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/afikmenashe/alert-fanout/internal/channel"
	"github.com/afikmenashe/alert-fanout/internal/events"
	"github.com/afikmenashe/alert-fanout/internal/failure"
)

type subscribeCall struct {
	topicID string
	address string
	filter  channel.Filter
}

type publishCall struct {
	topicID string
	text    string
	attrs   map[string]string
}

// fakeChannel is a test fake for channel.Channel.
type fakeChannel struct {
	mu         sync.Mutex
	subscribes []subscribeCall
	publishes  []publishCall
	direct     []string
	removed    []channel.SubscriptionHandle
	listed     []string
	subs       []channel.Subscription
	err        error
}

func (f *fakeChannel) SendToAddress(ctx context.Context, address, text string) (channel.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, address)
	return "direct-1", f.err
}

func (f *fakeChannel) SendToTopic(ctx context.Context, topicID, text string, attrs map[string]string) (channel.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes = append(f.publishes, publishCall{topicID: topicID, text: text, attrs: attrs})
	if f.err != nil {
		return "", f.err
	}
	return "msg-1", nil
}

func (f *fakeChannel) AddSubscription(ctx context.Context, topicID, address string, filter channel.Filter) (channel.SubscriptionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, subscribeCall{topicID: topicID, address: address, filter: filter})
	if f.err != nil {
		return "", f.err
	}
	return channel.SubscriptionHandle(topicID + ":sub"), nil
}

func (f *fakeChannel) RemoveSubscription(ctx context.Context, handle channel.SubscriptionHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, handle)
	return f.err
}

func (f *fakeChannel) ListSubscriptions(ctx context.Context, topicID string) ([]channel.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, topicID)
	if f.err != nil {
		return nil, f.err
	}
	return f.subs, nil
}

var testTopics = map[events.AlertClass]string{
	events.ClassCommon:    "topic-common",
	events.ClassEmergency: "topic-emergency",
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		topics  map[events.AlertClass]string
		ch      channel.Channel
		wantErr bool
	}{
		{"valid", testTopics, &fakeChannel{}, false},
		{"nil channel", testTopics, nil, true},
		{"missing emergency", map[events.AlertClass]string{events.ClassCommon: "c"}, &fakeChannel{}, true},
		{"empty topic id", map[events.AlertClass]string{events.ClassCommon: "c", events.ClassEmergency: ""}, &fakeChannel{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.topics, tt.ch)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_CopiesTopicTable(t *testing.T) {
	topics := map[events.AlertClass]string{events.ClassCommon: "c", events.ClassEmergency: "e"}
	r, err := New(topics, &fakeChannel{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	topics[events.ClassCommon] = "changed"

	if got, _ := r.TopicFor(events.ClassCommon); got != "c" {
		t.Errorf("TopicFor(Common) = %q after caller mutation, want c", got)
	}
}

func TestRegistry_Subscribe(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := New(testTopics, ch)

	handle, err := r.Subscribe(context.Background(), "+15550001111", events.ClassCommon)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if handle != "topic-common:sub" {
		t.Errorf("handle = %q", handle)
	}
	if len(ch.subscribes) != 1 {
		t.Fatalf("subscribe calls = %d, want 1", len(ch.subscribes))
	}
	call := ch.subscribes[0]
	if call.topicID != "topic-common" || call.address != "+15550001111" {
		t.Errorf("call = %+v", call)
	}
	if call.filter.Attribute != FilterAttribute || len(call.filter.Values) != 1 || call.filter.Values[0] != "Common" {
		t.Errorf("filter = %+v, want type=[Common]", call.filter)
	}
}

func TestRegistry_SubscribeTwiceIsNotPrechecked(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := New(testTopics, ch)

	for i := 0; i < 2; i++ {
		if _, err := r.Subscribe(context.Background(), "+15550001111", events.ClassEmergency); err != nil {
			t.Fatalf("Subscribe() #%d error = %v", i+1, err)
		}
	}
	if len(ch.subscribes) != 2 {
		t.Errorf("subscribe calls = %d, want 2 (transport absorbs duplicates)", len(ch.subscribes))
	}
}

func TestRegistry_Publish(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := New(testTopics, ch)

	id, err := r.Publish(context.Background(), events.ClassEmergency, "Fire - Evacuate building B")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id != "msg-1" {
		t.Errorf("MessageID = %q", id)
	}
	call := ch.publishes[0]
	if call.topicID != "topic-emergency" || call.text != "Fire - Evacuate building B" {
		t.Errorf("call = %+v", call)
	}
	if call.attrs[FilterAttribute] != "Emergency" {
		t.Errorf("attrs = %v, want type=Emergency", call.attrs)
	}
}

func TestRegistry_UnknownClass(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := New(testTopics, ch)

	_, err := r.Publish(context.Background(), events.AlertClass("Severe"), "x")
	if failure.KindOf(err) != failure.UnrecognizedAlertClass {
		t.Errorf("Publish() error = %v, want UnrecognizedAlertClass", err)
	}
	_, err = r.Subscribe(context.Background(), "+1", events.AlertClass("common"))
	if failure.KindOf(err) != failure.UnrecognizedAlertClass {
		t.Errorf("Subscribe() error = %v, want UnrecognizedAlertClass", err)
	}
	if len(ch.publishes) != 0 || len(ch.subscribes) != 0 {
		t.Error("channel was called for an unknown class")
	}
}

func TestRegistry_ChannelErrorsSurfaceUnmodified(t *testing.T) {
	transportErr := failure.New(failure.Throttled, "send to topic", errors.New("rate exceeded"))
	ch := &fakeChannel{err: transportErr}
	r, _ := New(testTopics, ch)

	_, err := r.Publish(context.Background(), events.ClassCommon, "x")
	if err != transportErr {
		t.Errorf("Publish() error = %v, want the channel error unchanged", err)
	}
	if len(ch.publishes) != 1 {
		t.Errorf("publish calls = %d, want exactly 1 (no local retry)", len(ch.publishes))
	}
}

func TestRegistry_SendDirect(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := New(testTopics, ch)

	if _, err := r.SendDirect(context.Background(), "+15550001111", "hi"); err != nil {
		t.Fatalf("SendDirect() error = %v", err)
	}
	if len(ch.direct) != 1 || ch.direct[0] != "+15550001111" {
		t.Errorf("direct sends = %v", ch.direct)
	}
}

func TestRegistry_Unsubscribe(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := New(testTopics, ch)

	if err := r.Unsubscribe(context.Background(), "topic-common:sub"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if len(ch.removed) != 1 || ch.removed[0] != "topic-common:sub" {
		t.Errorf("removed = %v, want [topic-common:sub]", ch.removed)
	}

	if err := r.Unsubscribe(context.Background(), ""); err == nil {
		t.Error("Unsubscribe(\"\") error = nil, want error")
	}
	if len(ch.removed) != 1 {
		t.Errorf("channel was called for an empty handle")
	}
}

func TestRegistry_List(t *testing.T) {
	ch := &fakeChannel{subs: []channel.Subscription{
		{Handle: "topic-emergency:sub", TopicID: "topic-emergency", Protocol: "sms", Address: "+15550001111"},
	}}
	r, _ := New(testTopics, ch)

	subs, err := r.List(context.Background(), events.ClassEmergency)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ch.listed) != 1 || ch.listed[0] != "topic-emergency" {
		t.Errorf("listed topics = %v, want [topic-emergency]", ch.listed)
	}
	if len(subs) != 1 || subs[0].Address != "+15550001111" {
		t.Errorf("List() = %+v", subs)
	}

	if _, err := r.List(context.Background(), events.AlertClass("Severe")); failure.KindOf(err) != failure.UnrecognizedAlertClass {
		t.Errorf("List() unknown class error = %v, want UnrecognizedAlertClass", err)
	}
	if len(ch.listed) != 1 {
		t.Error("channel was called for an unknown class")
	}
}

func TestRegistry_UnsubscribeErrorSurfacesUnmodified(t *testing.T) {
	transportErr := failure.New(failure.TransportUnavailable, "remove subscription", errors.New("connection reset"))
	r, _ := New(testTopics, &fakeChannel{err: transportErr})

	if err := r.Unsubscribe(context.Background(), "h"); err != transportErr {
		t.Errorf("Unsubscribe() error = %v, want the channel error unchanged", err)
	}
}
