package candles

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownTimeframe is returned when a timeframe string has no mapping.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Timeframe is the bucket width used by the aggregator.
type Timeframe int

const (
	TF1s Timeframe = iota
	TF5s
	TF15s
	TF30s
	TF1m
	TF5m
	TF15m
)

// All lists every timeframe in ascending width.
var All = []Timeframe{TF1s, TF5s, TF15s, TF30s, TF1m, TF5m, TF15m}

// Duration returns the bucket width.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1s:
		return time.Second
	case TF5s:
		return 5 * time.Second
	case TF15s:
		return 15 * time.Second
	case TF30s:
		return 30 * time.Second
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	default:
		panic(fmt.Sprintf("candles: invalid timeframe %d", int(tf)))
	}
}

// Millis returns the bucket width in milliseconds.
func (tf Timeframe) Millis() int64 {
	return tf.Duration().Milliseconds()
}

// Cadence is the driver interval used while tf is the active timeframe.
// Shorter timeframes tick faster.
func (tf Timeframe) Cadence() time.Duration {
	switch tf {
	case TF1s:
		return 100 * time.Millisecond
	case TF5s:
		return 150 * time.Millisecond
	case TF15s, TF30s:
		return 200 * time.Millisecond
	case TF1m:
		return 250 * time.Millisecond
	default:
		return 300 * time.Millisecond
	}
}

func (tf Timeframe) String() string {
	switch tf {
	case TF1s:
		return "1s"
	case TF5s:
		return "5s"
	case TF15s:
		return "15s"
	case TF30s:
		return "30s"
	case TF1m:
		return "1m"
	case TF5m:
		return "5m"
	case TF15m:
		return "15m"
	default:
		return fmt.Sprintf("Timeframe(%d)", int(tf))
	}
}

// ParseTimeframe maps a label such as "5s" or "1m" to its Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, tf := range All {
		if tf.String() == key {
			return tf, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
}

// MarshalText lets timeframes travel as their labels in JSON and YAML.
func (tf Timeframe) MarshalText() ([]byte, error) {
	return []byte(tf.String()), nil
}

// UnmarshalText parses a timeframe label.
func (tf *Timeframe) UnmarshalText(b []byte) error {
	v, err := ParseTimeframe(string(b))
	if err != nil {
		return err
	}
	*tf = v
	return nil
}
