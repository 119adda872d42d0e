package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/ppiankov/veracity/internal/validate"
	"go.uber.org/zap"
)

// ErrNoVerifier is returned by Verify when verification is not configured
var ErrNoVerifier = errors.New("ingest: no verifier configured")

// Verify checks the URL of every stored source (optionally one topic) and
// records whether it is reachable
func (i *Ingester) Verify(ctx context.Context, topic string) ([]validate.Verification, error) {
	if i.verifier == nil {
		return nil, ErrNoVerifier
	}

	sources, err := i.store.ListSources(ctx, topic, 0)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	results := i.verifier.VerifyAll(ctx, sources)

	var errs *multierror.Error
	for _, r := range results {
		if err := i.store.SetVerified(ctx, r.SourceID, r.IsAccessible); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("source %s: %w", r.SourceID, err))
			continue
		}
		if !r.IsAccessible {
			i.logger.Info("source not reachable",
				zap.String("source_id", r.SourceID),
				zap.String("url", r.URL),
				zap.Int("status", r.StatusCode),
				zap.String("error", r.Error))
		}
	}

	return results, errs.ErrorOrNil()
}
