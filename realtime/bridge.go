package realtime

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/setlist"
)

// Bridge pumps published setlist events from the bus into the hub. It's its
// own suture service so a wedged subscription restarts without touching the
// hub or the engine.
type Bridge struct {
	bus *Bus
	hub *Hub
}

func NewBridge(bus *Bus, hub *Hub) *Bridge {
	return &Bridge{bus: bus, hub: hub}
}

func (br *Bridge) Serve(ctx context.Context) error {
	msgs, err := br.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			var ev setlist.Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				logging.Warn().Err(err).Str("message", msg.UUID).Msg("undecodable event, dropping")
				msg.Ack()
				continue
			}
			br.hub.Broadcast(ev)
			msg.Ack()
		}
	}
}

func (br *Bridge) String() string { return "realtime-bridge" }
