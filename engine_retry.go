package loginguard

import (
	"context"
	"errors"
	"log"
)

// RetryPendingLogins replays credentials queued by earlier connectivity
// failures. Each successful replay removes its entry from the offline store;
// entries that fail again stay queued (except credential rejections, which
// are dropped since retrying them cannot succeed). Returns the number of
// successful replays.
func (e *Engine) RetryPendingLogins(ctx context.Context) (int, error) {
	if e == nil || !e.ready {
		return 0, ErrEngineNotReady
	}
	if e.offline == nil {
		return 0, nil
	}

	pending, err := e.offline.LoadAll(ctx)
	if err != nil {
		return 0, errors.Join(ErrOfflineStoreFailed, err)
	}

	replayed := 0
	for _, creds := range pending {
		if ctx.Err() != nil {
			return replayed, ctx.Err()
		}

		_, err := e.Login(ctx, creds)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				// Stale secret; keeping it queued would replay a
				// guaranteed failure into the ledger forever.
				if delErr := e.offline.Delete(ctx, creds); delErr != nil {
					log.Printf("loginguard: dropping stale offline credential failed: %v", delErr)
				}
			}
			continue
		}

		replayed++
		e.metricInc(MetricOfflineReplayed)
		e.emitAudit(ctx, auditEventOfflineReplayed, true, creds.Principal, "", nil, nil)

		if err := e.offline.Delete(ctx, creds); err != nil {
			log.Printf("loginguard: removing replayed offline credential failed: %v", err)
		}
	}

	return replayed, nil
}
