package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trustline/portal-backend/internal/notifications"
	"trustline/portal-backend/internal/trustscore"
	"trustline/portal-backend/pkg/storage"
)

type ScoreReconciler interface {
	Reconcile(ctx context.Context, lister trustscore.UserLister, batch int) (int, error)
}

type UrgentCounter interface {
	CountUrgent(ctx context.Context) (int64, error)
}

type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, kind notifications.Kind, title, body string, data map[string]any) error
}

type Archiver interface {
	Archive(ctx context.Context, store storage.S3Client, bucket string, now time.Time) (string, error)
}

// ReconcileScores rewrites every cached trust score that drifted from the
// computed value.
func ReconcileScores(scores ScoreReconciler, users trustscore.UserLister, batch int, logger *zap.Logger) Func {
	return func(ctx context.Context) error {
		corrected, err := scores.Reconcile(ctx, users, batch)
		if err != nil {
			return err
		}
		if corrected > 0 {
			logger.Info("Corrected trust scores", zap.Int("count", corrected))
		}
		return nil
	}
}

// AlertUrgentQueue tells the admins how many requests have waited past the
// urgency threshold. Nothing is sent while the count is zero.
func AlertUrgentQueue(counter UrgentCounter, notifier AdminNotifier) Func {
	return func(ctx context.Context) error {
		n, err := counter.CountUrgent(ctx)
		if err != nil {
			return fmt.Errorf("failed to count urgent requests: %w", err)
		}
		if n == 0 {
			return nil
		}

		noun := "requests are"
		if n == 1 {
			noun = "request is"
		}
		return notifier.NotifyAdmins(ctx, notifications.KindUrgentQueue,
			"Verification queue needs attention",
			fmt.Sprintf("%d verification %s waiting past the review deadline.", n, noun),
			map[string]any{"urgent": n})
	}
}

// ArchiveMonthlyDashboard stores last month's dashboard in the reports bucket.
func ArchiveMonthlyDashboard(archiver Archiver, store storage.S3Client, bucket string, now func() time.Time) Func {
	return func(ctx context.Context) error {
		_, err := archiver.Archive(ctx, store, bucket, now())
		return err
	}
}
