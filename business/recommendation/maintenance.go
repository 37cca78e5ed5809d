package recommendation

import (
	"context"
	"fmt"
	"hybridReco/pkg/logger"
)

// PurgeExpired deletes the user's rows whose expiry has passed and drops cached results.
func (s *Service) PurgeExpired(ctx context.Context, userID uint64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	n, err := s.recs.DeleteExpired(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired recommendations: %w", err)
	}
	if n > 0 {
		s.cache.InvalidateUser(ctx, userID)
	}

	logger.Info("Expired recommendations purged",
		"trace_id", TraceIDFromContext(ctx),
		"user_id", userID,
		"deleted", n,
	)
	return n, nil
}
