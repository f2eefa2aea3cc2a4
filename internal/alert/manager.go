// Package alert exposes hijack alert queries and reporting on top of the
// tracking store. Alert rows themselves are written by the sync path as
// part of each item's diff transaction.
package alert

import (
	"context"
	"fmt"
	"time"

	"appproft-buybox-sync/internal/model"
	"appproft-buybox-sync/internal/repository"
)

// Manager answers alert queries for the HTTP surface.
type Manager struct {
	repo repository.TrackingRepository
}

// NewManager creates a new alert manager.
func NewManager(repo repository.TrackingRepository) *Manager {
	return &Manager{repo: repo}
}

// AlertView is a HijackAlert annotated with its price classification.
type AlertView struct {
	model.HijackAlert
	PriceStatus string `json:"price_status"`
}

func annotate(alerts []model.HijackAlert) []AlertView {
	views := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, AlertView{HijackAlert: a, PriceStatus: a.PriceStatus()})
	}
	return views
}

// Active returns all currently active alerts, newest first.
func (m *Manager) Active(ctx context.Context) ([]AlertView, error) {
	alerts, err := m.repo.ListActiveAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return annotate(alerts), nil
}

// Resolved returns all resolved alerts, newest first.
func (m *Manager) Resolved(ctx context.Context) ([]AlertView, error) {
	alerts, err := m.repo.ListResolvedAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved alerts: %w", err)
	}
	return annotate(alerts), nil
}

// Summary aggregates alert activity. Mean time to resolve is computed over
// resolved alerts only; active alerts contribute to the counts but not the
// mean.
func (m *Manager) Summary(ctx context.Context) (*model.AlertSummary, error) {
	active, err := m.repo.ListActiveAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	resolved, err := m.repo.ListResolvedAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved alerts: %w", err)
	}

	summary := &model.AlertSummary{
		ActiveAlerts:   len(active),
		ResolvedAlerts: len(resolved),
	}

	asins := make(map[string]struct{})
	hijackers := make(map[string]struct{})
	for _, a := range active {
		asins[a.ASIN] = struct{}{}
		hijackers[a.HijackerID] = struct{}{}
	}
	summary.AffectedItems = len(asins)
	summary.UniqueHijackers = len(hijackers)

	var total time.Duration
	var counted int
	for _, a := range resolved {
		if a.ResolvedAt == nil {
			continue
		}
		total += a.ResolvedAt.Sub(a.DetectedAt)
		counted++
	}
	if counted > 0 {
		summary.MeanTimeToResolve = total / time.Duration(counted)
	}
	return summary, nil
}
