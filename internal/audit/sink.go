package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/contentkit/schemaload/internal/loader"
)

// Sink mirrors per-document load outcomes into ClickHouse for monitoring.
// The mirror is strictly observational: the loader treats sink errors as
// warnings, never as load failures.
type Sink struct {
	client *Client
}

// NewSink creates an audit sink over the given ClickHouse client
func NewSink(client *Client) *Sink {
	return &Sink{client: client}
}

// RecordLoad writes one row per document outcome
func (s *Sink) RecordLoad(ctx context.Context, loadID string, outcomes []loader.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	batch, err := s.client.Conn().PrepareBatch(ctx, "INSERT INTO schemaload.load_audit")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now()
	for _, outcome := range outcomes {
		err := batch.Append(
			now,
			loadID,
			outcome.URI,
			outcome.Path,
			outcome.Status,
			outcome.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Debug().
		Str("load_id", loadID).
		Int("outcomes", len(outcomes)).
		Msg("Load audit written to ClickHouse")

	return nil
}
