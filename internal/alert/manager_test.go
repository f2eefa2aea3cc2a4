package alert_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appproft-buybox-sync/internal/alert"
	"appproft-buybox-sync/internal/model"
	"appproft-buybox-sync/internal/repository"
)

type stubRepo struct {
	repository.TrackingRepository

	active   []model.HijackAlert
	resolved []model.HijackAlert
}

func (s *stubRepo) ListActiveAlerts(context.Context) ([]model.HijackAlert, error) {
	return s.active, nil
}

func (s *stubRepo) ListResolvedAlerts(context.Context) ([]model.HijackAlert, error) {
	return s.resolved, nil
}

func TestManager_ActiveAnnotatesPriceStatus(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := &stubRepo{active: []model.HijackAlert{
		{ASIN: "B000AAAA01", HijackerID: "A2RIVAL", OwnPrice: 19.99, HijackerPrice: 18.75, DetectedAt: now, IsActive: true},
		{ASIN: "B000BBBB02", HijackerID: "A3RIVAL", OwnPrice: 19.99, HijackerPrice: 19.99, DetectedAt: now, IsActive: true},
		{ASIN: "B000CCCC03", HijackerID: "A4RIVAL", OwnPrice: 19.99, HijackerPrice: 22.00, DetectedAt: now, IsActive: true},
	}}
	m := alert.NewManager(repo)

	views, err := m.Active(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, model.PriceStatusUndercutting, views[0].PriceStatus)
	assert.Equal(t, model.PriceStatusMatching, views[1].PriceStatus)
	assert.Equal(t, model.PriceStatusOverpriced, views[2].PriceStatus)
}

func TestManager_Summary(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	resolvedAt := func(d time.Duration) *time.Time {
		at := now.Add(d)
		return &at
	}

	repo := &stubRepo{
		active: []model.HijackAlert{
			{ASIN: "B000AAAA01", HijackerID: "A2RIVAL", DetectedAt: now, IsActive: true},
			{ASIN: "B000AAAA01", HijackerID: "A3RIVAL", DetectedAt: now, IsActive: true},
			{ASIN: "B000BBBB02", HijackerID: "A2RIVAL", DetectedAt: now, IsActive: true},
		},
		resolved: []model.HijackAlert{
			{ASIN: "B000CCCC03", HijackerID: "A4RIVAL", DetectedAt: now, ResolvedAt: resolvedAt(time.Hour)},
			{ASIN: "B000CCCC03", HijackerID: "A5RIVAL", DetectedAt: now, ResolvedAt: resolvedAt(3 * time.Hour)},
		},
	}
	m := alert.NewManager(repo)

	summary, err := m.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ActiveAlerts)
	assert.Equal(t, 2, summary.ResolvedAlerts)
	// Two distinct items and two distinct hijackers are under active attack.
	assert.Equal(t, 2, summary.AffectedItems)
	assert.Equal(t, 2, summary.UniqueHijackers)
	assert.Equal(t, 2*time.Hour, summary.MeanTimeToResolve)
}

func TestManager_SummaryEmpty(t *testing.T) {
	t.Parallel()

	m := alert.NewManager(&stubRepo{})

	summary, err := m.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.ActiveAlerts)
	assert.Zero(t, summary.MeanTimeToResolve)
}
