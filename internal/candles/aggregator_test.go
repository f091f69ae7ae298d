package candles

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wager-core/internal/market"
)

func tick(ts int64, price, vol float64) market.Tick {
	return market.Tick{Symbol: "EURUSD", Timestamp: ts, Price: price, Volume: vol}
}

func TestIngestBuildsOHLCV(t *testing.T) {
	a := NewAggregator(TF5s, 10)

	a.Ingest(tick(10_000, 1.0850, 1))
	a.Ingest(tick(11_000, 1.0870, 2))
	a.Ingest(tick(12_500, 1.0840, 3))
	got := a.Ingest(tick(14_999, 1.0860, 4))

	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, int64(10_000), c.BucketStart)
	assert.Equal(t, 1.0850, c.Open)
	assert.Equal(t, 1.0870, c.High)
	assert.Equal(t, 1.0840, c.Low)
	assert.Equal(t, 1.0860, c.Close)
	assert.Equal(t, 10.0, c.Volume)
}

func TestNewBucketOpensCandle(t *testing.T) {
	a := NewAggregator(TF1s, 10)

	_, opened := a.Add(tick(1_200, 10, 1))
	assert.True(t, opened)
	_, opened = a.Add(tick(1_900, 11, 1))
	assert.False(t, opened)
	c, opened := a.Add(tick(2_000, 12, 1))
	assert.True(t, opened)
	assert.Equal(t, int64(2_000), c.BucketStart)

	all := a.Candles()
	require.Len(t, all, 2)
	assert.Equal(t, 11.0, all[0].Close, "superseded candle keeps its last close")
}

func TestNoGapFilling(t *testing.T) {
	got := Aggregate([]market.Tick{
		tick(0, 1, 1),
		tick(5_000, 2, 1),
		tick(20_000, 3, 1),
	}, TF5s, 10)

	require.Len(t, got, 3)
	assert.Equal(t, []int64{0, 5_000, 20_000}, []int64{got[0].BucketStart, got[1].BucketStart, got[2].BucketStart})
}

func TestRetentionCapEvictsOldest(t *testing.T) {
	a := NewAggregator(TF1s, 3)
	for i := int64(0); i < 6; i++ {
		a.Add(tick(i*1_000, float64(i+1), 1))
	}
	got := a.Candles()
	require.Len(t, got, 3)
	assert.Equal(t, int64(3_000), got[0].BucketStart)
	assert.Equal(t, int64(5_000), got[2].BucketStart)

	// A tick for an evicted bucket must not resurrect it.
	c, opened := a.Add(tick(500, 99, 1))
	assert.False(t, opened)
	assert.Zero(t, c)
	assert.Equal(t, got, a.Candles())
}

func TestOutOfOrderTickLandsInItsBucket(t *testing.T) {
	a := NewAggregator(TF1s, 10)
	a.Add(tick(1_000, 10, 1))
	a.Add(tick(3_000, 30, 1))
	a.Add(tick(2_100, 20, 1))
	a.Add(tick(1_500, 12, 1))

	got := a.Candles()
	require.Len(t, got, 3)
	assert.Equal(t, int64(2_000), got[1].BucketStart)
	assert.Equal(t, 12.0, got[0].High)
	assert.Equal(t, 12.0, got[0].Close)
}

func TestCandleInvariantsHold(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	ticks := make([]market.Tick, 0, 3000)
	price := 100.0
	for i := 0; i < 3000; i++ {
		price *= 1 + (rng.Float64()-0.5)*0.01
		ticks = append(ticks, tick(int64(i)*137, price, rng.Float64()))
	}

	for _, tf := range All {
		for _, c := range Aggregate(ticks, tf, 200) {
			if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
				t.Fatalf("%s: invariant broken: %+v", tf, c)
			}
			if c.BucketStart%tf.Millis() != 0 {
				t.Fatalf("%s: bucket %d not aligned", tf, c.BucketStart)
			}
		}
	}
}

func TestAggregationIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	ticks := make([]market.Tick, 0, 1000)
	for i := 0; i < 1000; i++ {
		ticks = append(ticks, tick(int64(i)*250, 50+rng.Float64(), rng.Float64()))
	}

	first, err := json.Marshal(Aggregate(ticks, TF5s, 80))
	require.NoError(t, err)
	second, err := json.Marshal(Aggregate(ticks, TF5s, 80))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBucketStart(t *testing.T) {
	assert.Equal(t, int64(60_000), BucketStart(119_999, TF1m))
	assert.Equal(t, int64(120_000), BucketStart(120_000, TF1m))
	assert.Equal(t, int64(-5_000), BucketStart(-1, TF5s))
}

func TestParseTimeframe(t *testing.T) {
	for _, tf := range All {
		got, err := ParseTimeframe(tf.String())
		require.NoError(t, err)
		assert.Equal(t, tf, got)
		assert.Positive(t, tf.Cadence())
	}

	_, err := ParseTimeframe("2h")
	assert.True(t, errors.Is(err, ErrUnknownTimeframe))

	assert.Less(t, TF1s.Cadence(), TF5m.Cadence())
	assert.Equal(t, time.Minute, TF1m.Duration())
}

func TestTimeframeJSON(t *testing.T) {
	var v struct {
		TF Timeframe `json:"tf"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tf":"15s"}`), &v))
	assert.Equal(t, TF15s, v.TF)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tf":"15s"}`, string(b))
}
