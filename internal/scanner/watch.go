package scanner

import (
	"context"
	"time"

	"github.com/staffingops/ordersync/internal/mailbox"
)

// Watch re-runs the scan pass on a fixed interval until the context ends.
// Pass failures are logged and the next tick tries again; auth failures are
// fatal because no later pass can succeed without new credentials.
func (s *Scanner) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("watch mode", "interval", interval.String())
	for {
		if _, err := s.Scan(ctx); err != nil {
			if mailbox.IsAuthError(err) || ctx.Err() != nil {
				return err
			}
			s.log.Error("scan pass failed, retrying on next tick", "error", err)
			if s.stats != nil {
				s.stats.RecordError("scan", err.Error())
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
