package app

import (
	"context"
	"fmt"
	"time"

	"handbook/internal/shared/observability"
)

// HealthService reports component status for the /health endpoint.
type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) observability.HealthStatus {
	status := observability.HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.Parser == nil {
		status.Status = "degraded"
		status.Components["parser"] = "missing"
	} else {
		status.Components["parser"] = fmt.Sprintf("ok (%d extensions)", len(s.app.Parser.SupportedExtensions()))
	}

	if transformer, _, _ := s.app.engine(); transformer == nil {
		status.Status = "degraded"
		status.Components["transformer"] = "missing"
	} else {
		status.Components["transformer"] = "ok"
	}

	store := s.app.Store()
	switch {
	case store != nil:
		if _, err := store.RecentRuns(1); err != nil {
			status.Status = "degraded"
			status.Components["cache"] = "error: " + err.Error()
		} else {
			status.Components["cache"] = "ok"
		}
	case s.app.Config.Cache.IsEnabled() && !s.app.check:
		status.Status = "degraded"
		status.Components["cache"] = "missing but enabled in config"
	default:
		status.Components["cache"] = "disabled"
	}

	if s.app.activeWatcher != nil {
		status.Components["watcher"] = "ok"
	} else {
		status.Components["watcher"] = "idle"
	}
	return status
}
