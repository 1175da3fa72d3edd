package syncer

import (
	"context"

	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/metrics"
)

// A writeStrategy is one way of persisting a prepared record. Strategies run
// in order and the first success short-circuits. A strategy with a gate only
// runs when the gate accepts the previous strategy's failure.
type writeStrategy[R any] struct {
	name  string
	gate  func(prev error) bool
	write func(context.Context, R) (R, error)
}

// persist runs the chain. When every strategy fails, the prepared record is
// returned as-is: callers serve the data they fetched even when the store
// won't take it.
func persist[R any](ctx context.Context, kind string, prepared R, chain []writeStrategy[R]) R {
	var prev error
	for _, st := range chain {
		if st.gate != nil && !st.gate(prev) {
			continue
		}
		persisted, err := st.write(ctx, prepared)
		if err != nil {
			prev = err
			logging.Warn().
				Err(err).
				Str("kind", kind).
				Str("strategy", st.name).
				Msg("write failed")
			continue
		}
		metrics.SyncWrites.WithLabelValues(kind, st.name).Inc()
		return persisted
	}

	logging.Error().
		Err(prev).
		Str("kind", kind).
		Msg("every write strategy failed, serving unpersisted record")
	metrics.SyncWrites.WithLabelValues(kind, "unpersisted").Inc()
	return prepared
}
