package listener

import (
	"context"
	"sync"
	"testing"

	"chat-service/event"
	"chat-service/model"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
)

type startCall struct {
	UserA, UserB string
	PropertyID   string
}

type fakeStarter struct {
	mu    sync.Mutex
	calls []startCall
}

func (f *fakeStarter) FindOrCreate(_ context.Context, a, b string, propertyID *string) (*model.Conversation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := startCall{UserA: a, UserB: b}
	if propertyID != nil {
		call.PropertyID = *propertyID
	}
	f.calls = append(f.calls, call)
	return &model.Conversation{ID: "c1", UserA: a, UserB: b, PropertyID: propertyID}, true, nil
}

func TestConversationStart(t *testing.T) {
	deliveries := make(chan event.Delivery)
	starter := &fakeStarter{}

	done := make(chan struct{})
	go func() {
		ConversationStart(context.Background(), deliveries, starter, slogt.New(t))
		close(done)
	}()

	for _, d := range []event.Delivery{
		{Action: event.ActionConversationStart, Data: []byte(`{"userA":"buyer","userB":"owner","propertyId":"p9"}`)},
		{Action: event.ActionConversationStart, Data: []byte(`{not json`)},
		{Action: event.ActionConversationStart, Data: []byte(`{"userA":"buyer"}`)},
		{Action: event.ActionConversationStart, Data: []byte(`{"userA":"same","userB":"same"}`)},
		{Action: "property.deleted", Data: []byte(`{"userA":"a","userB":"b"}`)},
		{Data: []byte(`{"userA":"buyer","userB":"agent"}`)},
	} {
		deliveries <- d
	}
	close(deliveries)
	<-done

	want := []startCall{
		{UserA: "buyer", UserB: "owner", PropertyID: "p9"},
		{UserA: "buyer", UserB: "agent"},
	}
	if diff := cmp.Diff(want, starter.calls); diff != "" {
		t.Errorf("FindOrCreate calls mismatch (-want +got):\n%s", diff)
	}
}
