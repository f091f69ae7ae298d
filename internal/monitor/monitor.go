package monitor

import (
	"context"
	"time"

	"wager-core/internal/events"
	"wager-core/internal/trade"
	"wager-core/pkg/logger"
)

// Monitor watches settlement and trend events and raises alerts through
// its rules.
type Monitor struct {
	Bus     *events.Bus
	Sink    AlertSink
	Rules   []Rule
	Metrics *SystemMetrics // optional; receives the bus drop counter
}

// Start consumes the bus until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	log := logger.WithComponent("monitor")
	if m.Bus == nil || m.Sink == nil {
		log.Warn("monitor not fully configured; skipping")
		return
	}
	stream, unsub := m.Bus.Subscribe(256, events.EventTradeSettled, events.EventTrendChange)
	sync := time.NewTicker(5 * time.Second)

	go func() {
		defer unsub()
		defer sync.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sync.C:
				if m.Metrics != nil {
					m.Metrics.SetBusDropped(m.Bus.Dropped())
				}
			case msg, ok := <-stream:
				if !ok {
					return
				}
				m.handle(msg)
			}
		}
	}()
}

func (m *Monitor) handle(msg events.Message) {
	for _, r := range m.Rules {
		fire, text := r.Check(msg)
		if !fire {
			continue
		}
		if err := m.Sink.Send(formatAlert(msg.Timestamp, text)); err != nil {
			logger.WithComponent("monitor").WithError(err).Warn("alert delivery failed")
		}
	}
}

func formatAlert(ts int64, text string) string {
	return "[" + time.UnixMilli(ts).UTC().Format(time.RFC3339) + "] " + text
}

// settledTrade extracts the completed trade from a settlement message.
func settledTrade(msg events.Message) (trade.CompletedTrade, bool) {
	if msg.Event != events.EventTradeSettled {
		return trade.CompletedTrade{}, false
	}
	switch p := msg.Payload.(type) {
	case trade.CompletedTrade:
		return p, true
	case *trade.CompletedTrade:
		if p != nil {
			return *p, true
		}
	}
	return trade.CompletedTrade{}, false
}
