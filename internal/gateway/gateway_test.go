package gateway

import (
	"context"
	"errors"
	"testing"

	"kanbot/internal/eventbus"
	"kanbot/internal/message"
	"kanbot/pkg/logx"
)

type fakeClient struct {
	sendErr error
	panics  bool
	sent    []message.Message
}

func (c *fakeClient) SendMessage(_ context.Context, msg message.Message) error {
	if c.panics {
		panic("client exploded")
	}
	c.sent = append(c.sent, msg)
	return c.sendErr
}

type fakeFactory struct {
	client  *fakeClient
	initErr error
}

func (f *fakeFactory) NewClient(apiKey, botUsername string) (Client, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f.client, nil
}

func TestSendDeliversOnce(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	g := New(&fakeFactory{client: client}, logx.Nop(), nil)

	msg := message.Message{ChatID: "100", Text: "hi", ParseMode: message.ParseModeMarkdown}
	if err := g.Send(context.Background(), "key", "bot", "d1", msg); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(client.sent) != 1 || client.sent[0].ChatID != "100" {
		t.Fatalf("sent = %+v, want one message to 100", client.sent)
	}
}

func TestSendFaultsAreContained(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		factory *fakeFactory
	}{
		{name: "client init fails", factory: &fakeFactory{initErr: errors.New("unauthorized")}},
		{name: "send fails", factory: &fakeFactory{client: &fakeClient{sendErr: errors.New("network")}}},
		{name: "client panics", factory: &fakeFactory{client: &fakeClient{panics: true}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.factory, logx.Nop(), nil)
			// must return an error value, never panic
			err := g.Send(context.Background(), "key", "bot", "d1", message.Message{ChatID: "100"})
			if err == nil {
				t.Fatal("expected an error value")
			}
		})
	}
}

func TestSendPublishesOutcome(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	g := New(&fakeFactory{client: &fakeClient{sendErr: errors.New("boom")}}, logx.Nop(), bus)
	_ = g.Send(context.Background(), "key", "bot", "d7", message.Message{ChatID: "100"})

	select {
	case e := <-ch:
		if e.Type != EventFailed {
			t.Fatalf("event type = %q, want %q", e.Type, EventFailed)
		}
		out, ok := e.Data.(Outcome)
		if !ok || out.DispatchID != "d7" || out.Error == "" {
			t.Fatalf("outcome = %+v", e.Data)
		}
	default:
		t.Fatal("expected an outcome event on the bus")
	}

	// and the success case
	g = New(&fakeFactory{client: &fakeClient{}}, logx.Nop(), bus)
	_ = g.Send(context.Background(), "key", "bot", "d8", message.Message{ChatID: "100"})
	select {
	case e := <-ch:
		if e.Type != EventSent {
			t.Fatalf("event type = %q, want %q", e.Type, EventSent)
		}
	default:
		t.Fatal("expected a sent event on the bus")
	}
}

func TestSendPassesEmptyChatIDThrough(t *testing.T) {
	t.Parallel()
	// An empty chat id is not a local no-op: the attempt is made and the
	// messaging API decides. This pins the pass-through behavior.
	client := &fakeClient{}
	g := New(&fakeFactory{client: client}, logx.Nop(), nil)

	if err := g.Send(context.Background(), "key", "bot", "d1", message.Message{ChatID: ""}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(client.sent) != 1 || client.sent[0].ChatID != "" {
		t.Fatalf("sent = %+v, want one attempt with empty chat id", client.sent)
	}
}
