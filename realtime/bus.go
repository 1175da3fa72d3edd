// Package realtime carries accepted setlist mutations from the voting engine
// to live listeners. Events go onto an in-process watermill channel and a
// bridge pumps them into the websocket hub. Delivery is at-least-once and
// unordered; events carry absolute vote counts so consumers converge anyway.
package realtime

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/setlist"
)

// SetlistTopic is the one topic the bus carries.
const SetlistTopic = "setlist.events"

type Bus struct {
	ch *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{
		ch: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			busLogger{log: logging.Logger()},
		),
	}
}

// Publish implements setlist.Publisher.
func (b *Bus) Publish(ev setlist.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error encoding %s event: %w", ev.Type, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.ch.Publish(SetlistTopic, msg); err != nil {
		return fmt.Errorf("error publishing %s event: %w", ev.Type, err)
	}
	return nil
}

// Subscribe returns a channel of raw event messages. The subscription ends
// with the context.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	msgs, err := b.ch.Subscribe(ctx, SetlistTopic)
	if err != nil {
		return nil, fmt.Errorf("error subscribing to '%s': %w", SetlistTopic, err)
	}
	return msgs, nil
}

func (b *Bus) Close() error { return b.ch.Close() }

// busLogger adapts zerolog to watermill's logger interface.
type busLogger struct {
	log zerolog.Logger
}

func (l busLogger) Error(msg string, err error, fields watermill.LogFields) {
	withFields(l.log.Error().Err(err), fields).Msg(msg)
}

func (l busLogger) Info(msg string, fields watermill.LogFields) {
	withFields(l.log.Info(), fields).Msg(msg)
}

func (l busLogger) Debug(msg string, fields watermill.LogFields) {
	withFields(l.log.Debug(), fields).Msg(msg)
}

func (l busLogger) Trace(msg string, fields watermill.LogFields) {
	withFields(l.log.Trace(), fields).Msg(msg)
}

func (l busLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return busLogger{log: ctx.Logger()}
}

func withFields(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
