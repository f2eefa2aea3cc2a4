package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appproft-buybox-sync/internal/model"
	"appproft-buybox-sync/internal/repository"
)

func newTestRepo(t *testing.T) *repository.SQLiteTrackingRepository {
	t.Helper()

	cipher, err := repository.NewCipher("test-secret")
	require.NoError(t, err)

	repo, err := repository.NewSQLiteTrackingRepository(
		filepath.Join(t.TempDir(), "tracking.db"), cipher)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func statusAt(asin string, owner string, isOwner bool, at time.Time) model.BuyBoxStatus {
	return model.BuyBoxStatus{
		ASIN:            asin,
		IsOwner:         isOwner,
		OwnerID:         owner,
		BuyBoxPrice:     18.75,
		OwnPrice:        19.99,
		CompetitorCount: 2,
		LastCheckedAt:   at,
	}
}

func TestApplyDiff_StatusUpsert(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	missing, err := repo.GetStatus(ctx, "B000TEST01")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.ApplyDiff(ctx, repository.DiffMutation{
		Status: statusAt("B000TEST01", "A2RIVAL", false, now),
	}))

	got, err := repo.GetStatus(ctx, "B000TEST01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A2RIVAL", got.OwnerID)
	assert.Equal(t, 18.75, got.BuyBoxPrice)
	assert.True(t, got.LastCheckedAt.Equal(now))

	// A second apply for the same ASIN updates in place.
	require.NoError(t, repo.ApplyDiff(ctx, repository.DiffMutation{
		Status: statusAt("B000TEST01", "SELLER-US", true, now.Add(time.Hour)),
	}))

	statuses, err := repo.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].IsOwner)
}

func TestApplyDiff_CheckTimeNeverRegresses(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.ApplyDiff(ctx, repository.DiffMutation{
		Status: statusAt("B000TEST01", "A2RIVAL", false, now),
	}))
	require.NoError(t, repo.ApplyDiff(ctx, repository.DiffMutation{
		Status: statusAt("B000TEST01", "A2RIVAL", false, now.Add(-time.Hour)),
	}))

	got, err := repo.GetStatus(ctx, "B000TEST01")
	require.NoError(t, err)
	assert.True(t, got.LastCheckedAt.Equal(now), "stale write must not move last_checked_at backwards")
}

func TestApplyDiff_TransitionHistory(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	kinds := []model.TransitionKind{
		model.TransitionDiscovered,
		model.TransitionLost,
		model.TransitionWon,
	}
	for i, kind := range kinds {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.ApplyDiff(ctx, repository.DiffMutation{
			Status: statusAt("B000TEST01", "A2RIVAL", false, at),
			Transition: &model.BuyBoxTransition{
				ASIN:       "B000TEST01",
				Kind:       kind,
				NewOwner:   "A2RIVAL",
				OccurredAt: at,
			},
		}))
	}

	transitions, err := repo.ListTransitions(ctx, "B000TEST01", 10)
	require.NoError(t, err)
	require.Len(t, transitions, 3)
	// Newest first.
	assert.Equal(t, model.TransitionWon, transitions[0].Kind)
	assert.Equal(t, model.TransitionDiscovered, transitions[2].Kind)

	limited, err := repo.ListTransitions(ctx, "B000TEST01", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	other, err := repo.ListTransitions(ctx, "B000OTHER", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestApplyDiff_AlertLifecycle(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	open := func(hijacker string, at time.Time) repository.DiffMutation {
		return repository.DiffMutation{
			Status: statusAt("B000TEST01", hijacker, false, at),
			OpenAlert: &model.HijackAlert{
				ASIN:          "B000TEST01",
				HijackerID:    hijacker,
				HijackerName:  "Rival Store",
				OwnPrice:      19.99,
				HijackerPrice: 18.75,
				DetectedAt:    at,
				IsActive:      true,
			},
		}
	}

	require.NoError(t, repo.ApplyDiff(ctx, open("A2RIVAL", now)))
	// Same pair again: no duplicate active alert.
	require.NoError(t, repo.ApplyDiff(ctx, open("A2RIVAL", now.Add(time.Hour))))
	// Different hijacker: separate alert.
	require.NoError(t, repo.ApplyDiff(ctx, open("A3RIVAL", now.Add(2*time.Hour))))

	active, err := repo.ListActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	found, err := repo.FindActiveAlert(ctx, "B000TEST01", "A2RIVAL")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.DetectedAt.Equal(now), "dedup must keep the original detection time")

	// Winning the item back resolves every active alert for it.
	resolvedAt := now.Add(3 * time.Hour)
	require.NoError(t, repo.ApplyDiff(ctx, repository.DiffMutation{
		Status:        statusAt("B000TEST01", "SELLER-US", true, resolvedAt),
		ResolveAlerts: true,
		ResolvedAt:    resolvedAt,
	}))

	active, err = repo.ListActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	resolved, err := repo.ListResolvedAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	for _, a := range resolved {
		require.NotNil(t, a.ResolvedAt)
		assert.True(t, a.ResolvedAt.Equal(resolvedAt))
		assert.False(t, a.IsActive)
	}

	// A fresh loss afterwards opens a new alert for the same pair.
	require.NoError(t, repo.ApplyDiff(ctx, open("A2RIVAL", now.Add(4*time.Hour))))
	found, err = repo.FindActiveAlert(ctx, "B000TEST01", "A2RIVAL")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.DetectedAt.Equal(now.Add(4*time.Hour)))
}

func TestDeleteOffersBefore(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	offers := []model.CompetitorOffer{
		{ASIN: "B000TEST01", SellerID: "A2RIVAL", Price: 18.75, CollectedAt: now.Add(-100 * 24 * time.Hour)},
		{ASIN: "B000TEST01", SellerID: "A3RIVAL", Price: 18.50, CollectedAt: now.Add(-time.Hour)},
	}
	require.NoError(t, repo.ApplyDiff(ctx, repository.DiffMutation{
		Status: statusAt("B000TEST01", "A2RIVAL", false, now),
		Offers: offers,
	}))

	deleted, err := repo.DeleteOffersBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.DeleteOffersBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestSyncRunLifecycle(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	empty, err := repo.LastSyncRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	run := &model.SyncRun{
		ID:         "run-1",
		Trigger:    model.TriggerManual,
		Status:     model.RunStatusRunning,
		StartedAt:  now,
		ItemsTotal: 5,
	}
	require.NoError(t, repo.CreateSyncRun(ctx, run))

	got, err := repo.LastSyncRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)

	completedAt := now.Add(2 * time.Minute)
	run.Status = model.RunStatusPartial
	run.CompletedAt = &completedAt
	run.ItemsSucceeded = 4
	run.ItemsFailed = 1
	require.NoError(t, repo.FinishSyncRun(ctx, run))

	// A later run becomes the last one.
	require.NoError(t, repo.CreateSyncRun(ctx, &model.SyncRun{
		ID:        "run-2",
		Trigger:   model.TriggerScheduled,
		Status:    model.RunStatusRunning,
		StartedAt: now.Add(15 * time.Minute),
	}))

	got, err = repo.LastSyncRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.ID)
	assert.Equal(t, model.TriggerScheduled, got.Trigger)
}

func TestCredentialRoundTrip(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetCredential(ctx, "ATVPDKIKX0DER")
	require.Error(t, err)

	cred := &model.MarketplaceCredential{
		Marketplace:  "ATVPDKIKX0DER",
		SellerID:     "SELLER-US",
		RefreshToken: "Atzr|refresh-token-value",
	}
	require.NoError(t, repo.SaveCredential(ctx, cred))

	got, err := repo.GetCredential(ctx, "ATVPDKIKX0DER")
	require.NoError(t, err)
	assert.Equal(t, cred.RefreshToken, got.RefreshToken)
	assert.Equal(t, "SELLER-US", got.SellerID)

	// Upsert replaces the stored token.
	cred.RefreshToken = "Atzr|rotated"
	require.NoError(t, repo.SaveCredential(ctx, cred))

	got, err = repo.GetCredential(ctx, "ATVPDKIKX0DER")
	require.NoError(t, err)
	assert.Equal(t, "Atzr|rotated", got.RefreshToken)
}
