package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/sniperbot/internal/adapters/storage"
	"github.com/alejandrodnm/sniperbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStorage_SaveLabelsReplaces(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	entry := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	first := []domain.BarrierOutcome{
		{EntryTime: entry, EntryPrice: 100, Label: 1, Return: 0.012,
			ExitTime: entry.Add(3 * time.Minute), ExitKind: domain.ExitTarget},
		{EntryTime: entry.Add(time.Minute), EntryPrice: 101, Label: 0, Return: -0.006,
			ExitTime: entry.Add(5 * time.Minute), ExitKind: domain.ExitStop},
	}
	require.NoError(t, db.SaveLabels(ctx, "PSTG", first))

	total, wins, err := db.CountLabels(ctx, "PSTG")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, wins)

	// Una segunda corrida reemplaza, no acumula.
	require.NoError(t, db.SaveLabels(ctx, "PSTG", first[:1]))
	total, wins, err = db.CountLabels(ctx, "PSTG")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, wins)
}

func TestSQLiteStorage_SaveDecisionAndFill(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDecision(ctx, domain.Decision{
		Time: time.Now(), Symbol: "WDC", Stage: "cooldown",
	}))
	require.NoError(t, db.SaveDecision(ctx, domain.Decision{
		Time: time.Now(), Symbol: "PSTG", Stage: "admitted",
		Admitted: true, Probability: 0.62, Price: 41.10,
	}))
	require.NoError(t, db.SaveFill(ctx, domain.Fill{
		Symbol: "PSTG", Side: domain.SideBuy, Quantity: 120, Price: 41.25,
		Time: time.Now(), OrderID: "o-1",
	}))
}

func TestSQLiteStorage_DayReportIdempotent(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	rep := domain.DayReport{
		Day:           "2025-06-02",
		AccountEquity: 199000,
		TotalRealized: -450,
		Symbols:       []domain.SymbolPnL{{Symbol: "PSTG", RealizedPnL: -450}},
	}

	created, err := db.SaveDayReport(ctx, rep)
	require.NoError(t, err)
	assert.True(t, created)

	// Segunda reconciliación del mismo día: no reescribe.
	rep.TotalRealized = 9999
	created, err = db.SaveDayReport(ctx, rep)
	require.NoError(t, err)
	assert.False(t, created)

	// Otro día sí escribe.
	rep.Day = "2025-06-03"
	created, err = db.SaveDayReport(ctx, rep)
	require.NoError(t, err)
	assert.True(t, created)
}
