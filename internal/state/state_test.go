package state

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebot/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func populatedDocument() *Document {
	doc := NewDocument("conservative")
	doc.TradingEnabled = true
	doc.PositionOpen = true
	doc.Asset = Balances{Free: "0.41000000", Locked: "0.00000000"}
	doc.Quote = Balances{Free: "1250.73000000", Locked: "0.00000000"}
	doc.BuySignal = Signal{Flag: true, Time: 1756400400, Price: 43125.5, PriceDelta: 182.4}
	doc.SellReq = Request{Flag: true, TargetPrice: 43590.0}
	doc.SellOrder = Slot{
		Active:      true,
		ID:          991122,
		Price:       "43590.00",
		Status:      types.StatusPartiallyFilled,
		OrigQty:     "0.41000",
		ExecutedQty: "0.12000",
		CumQuoteQty: "5230.80",
	}
	doc.StoplossOrder = Slot{Active: true, ID: 991123, Price: "42100.00", Status: types.StatusNew}
	doc.StoplossIsOCO = true
	doc.OCOListID = 5510
	doc.OrderTimeout = 1756400460.5
	doc.StoplossHitTimeout = Timestamp{time.Date(2026, 8, 28, 17, 30, 0, 0, time.FixedZone("", 2*3600))}
	doc.StoplossLevel = 42100.0
	doc.LastPrice = 43412.2
	return doc
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path, populatedDocument(), testLogger())
	require.NoError(t, store.ForceFlush())

	reloaded, err := Load(path, "conservative", testLogger())
	require.NoError(t, err)

	want := store.Snapshot()
	got := reloaded.Snapshot()

	// Timestamps must survive with their zone offset intact. Compared by
	// textual form since reparsing yields an equivalent but distinct zone.
	assert.True(t, want.StoplossHitTimeout.Equal(got.StoplossHitTimeout.Time))
	assert.Equal(t,
		want.StoplossHitTimeout.Format("2006-01-02 15:04:05 -0700"),
		got.StoplossHitTimeout.Format("2006-01-02 15:04:05 -0700"))

	want.StoplossHitTimeout = Timestamp{}
	got.StoplossHitTimeout = Timestamp{}
	assert.Equal(t, want, got)
}

func TestLoadMissingFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := Load(path, "aggressive", testLogger())
	require.NoError(t, err)

	doc := store.Snapshot()
	assert.Equal(t, "aggressive", doc.Mode)
	assert.False(t, doc.TradingEnabled)
	assert.True(t, doc.StoplossEnabled)
	assert.False(t, doc.PositionOpen)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path, "conservative", testLogger())
	assert.Error(t, err)
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"state":{}}`), 0644))

	_, err := Load(path, "conservative", testLogger())
	assert.Error(t, err)
}

func TestMutateMarksDirtyAndFlushClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path, NewDocument("conservative"), testLogger())
	assert.False(t, store.Dirty())

	store.Mutate(func(d *Document) {
		d.LastPrice = 43500.0
	})
	assert.True(t, store.Dirty())

	require.NoError(t, store.FlushIfDirty())
	assert.False(t, store.Dirty())

	// A clean store does not rewrite the file.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, store.FlushIfDirty())
	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), info2.ModTime())
}

func TestSlotAndRequestAccessors(t *testing.T) {
	doc := NewDocument("conservative")
	doc.Slot(types.SlotSell).Active = true
	doc.Request(types.SlotStopLoss).Flag = true
	doc.Signal(types.SideBuy).Flag = true

	assert.True(t, doc.SellOrder.Active)
	assert.True(t, doc.StoplossReq.Flag)
	assert.True(t, doc.BuySignal.Flag)
	assert.True(t, doc.SellSideBusy())
}

func TestTimestampZeroValueRoundTrips(t *testing.T) {
	var ts Timestamp
	data, err := ts.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `""`, string(data))

	var back Timestamp
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, back.IsZero())
}
