package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/capmis/capmis-console/internal/ctxutil"
	"github.com/capmis/capmis-console/internal/observability"
	"github.com/capmis/capmis-console/internal/permissions"
	"github.com/capmis/capmis-console/internal/session"
)

// StartOverdueScan keeps the cached permission list and the overdue gauge
// fresh. It only runs while a session is live; the backend rejects
// anonymous calls anyway.
func StartOverdueScan(r *Runner, interval time.Duration, store *session.Store, studio *permissions.Studio, log *zap.Logger) {
	r.Every(interval, "overdue_scan", func(ctx context.Context) error {
		if !store.LoggedIn() {
			return nil
		}
		ctx, cancel := ctxutil.WithAPITimeout(ctx)
		defer cancel()
		if err := studio.Refresh(ctx); err != nil {
			log.Warn("overdue scan failed", zap.Error(err))
			observability.CaptureErr(err)
			return err
		}
		return nil
	})
}
