// Package gateway is the fault boundary around the external messaging API.
//
// A notification failure must never disrupt the workflow that triggered the
// event, so Send returns an explicit error for callers to discard after the
// outcome has been logged and published here. Nothing else escapes: even a
// panicking client is contained.
package gateway

import (
	"context"
	"fmt"

	"kanbot/internal/eventbus"
	"kanbot/internal/message"
	"kanbot/pkg/logx"
)

// Bus event types published per delivery attempt.
const (
	EventSent   = "delivery.sent"
	EventFailed = "delivery.failed"
)

// Outcome is the bus payload for a delivery attempt.
type Outcome struct {
	DispatchID string `json:"dispatch_id"`
	ChatID     string `json:"chat_id"`
	Error      string `json:"error,omitempty"`
}

// Client is one messaging session, scoped to a credential pair.
type Client interface {
	SendMessage(ctx context.Context, msg message.Message) error
}

// ClientFactory opens a session for the given credentials. Both construction
// and the send itself count as delivery faults when they fail.
type ClientFactory interface {
	NewClient(apiKey, botUsername string) (Client, error)
}

// Gateway performs exactly one delivery attempt per Send call: a fresh
// client session, a single send, no retry, no queuing.
type Gateway struct {
	factory ClientFactory
	log     logx.Logger
	bus     eventbus.Bus
}

func New(factory ClientFactory, log logx.Logger, bus eventbus.Bus) *Gateway {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gateway{factory: factory, log: log, bus: bus}
}

// Send attempts one delivery. The returned error is informational; callers
// in the dispatch path discard it, since the outcome has already been routed
// to the log and the event bus here.
//
// An empty ChatID is passed through as-is; rejecting it is the messaging
// API's call, matching the behavior the host depends on.
func (g *Gateway) Send(ctx context.Context, apiKey, botUsername, dispatchID string, msg message.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("messaging client panic: %v", r)
		}
		g.publish(dispatchID, msg.ChatID, err)
	}()

	client, err := g.factory.NewClient(apiKey, botUsername)
	if err != nil {
		return fmt.Errorf("open messaging session: %w", err)
	}
	if err := client.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (g *Gateway) publish(dispatchID, chatID string, err error) {
	out := Outcome{DispatchID: dispatchID, ChatID: chatID}
	typ := EventSent
	if err != nil {
		out.Error = err.Error()
		typ = EventFailed
		g.log.Warn("delivery failed", logx.String("dispatch_id", dispatchID), logx.String("chat_id", chatID), logx.Err(err))
	} else {
		g.log.Debug("delivery sent", logx.String("dispatch_id", dispatchID), logx.String("chat_id", chatID))
	}
	if g.bus != nil {
		g.bus.Publish(eventbus.Event{Type: typ, Data: out})
	}
}
