package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/justinchung712/swe-repo-notify/internal/modules/token"
	pkgcron "github.com/justinchung712/swe-repo-notify/internal/pkg/cron"
)

// Tokens stay single-use and short-lived; the purge only trims rows that
// can never be redeemed again.
const tokenRetention = 24 * time.Hour

func (a *App) registerCronJobs() {
	tokenSvc := token.NewService(a.db)
	logger := a.logger.Named("cron")

	a.sched.Register(pkgcron.Job{
		Name:     "purge-stale-tokens",
		Interval: 6 * time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := tokenSvc.PurgeStale(tokenRetention)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("purged stale tokens", zap.Int64("count", n))
			}
			return nil
		},
	})
}
