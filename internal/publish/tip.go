package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"veedor/internal/domain"
)

const tipKeyPrefix = "veedor:chain:tip:"

// TipExporter mirrors each source's chain head into Redis. External observers
// read the tip and can detect history rewrites by comparing it against the
// tips they recorded earlier.
type TipExporter struct {
	client *redis.Client
	logger *slog.Logger
}

func NewTipExporter(client *redis.Client, logger *slog.Logger) (*TipExporter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TipExporter{client: client, logger: logger}, nil
}

// Export writes every tip under veedor:chain:tip:<source_id>. Tips only grow,
// so an unconditional SET is safe; the chain store remains the authority.
func (e *TipExporter) Export(ctx context.Context, tips []domain.ChainTip) error {
	for _, tip := range tips {
		payload, err := json.Marshal(tip)
		if err != nil {
			return fmt.Errorf("encode tip for %s: %w", tip.SourceID, err)
		}
		if err := e.client.Set(ctx, tipKeyPrefix+tip.SourceID, payload, 0).Err(); err != nil {
			return fmt.Errorf("export tip for %s: %w", tip.SourceID, err)
		}
	}
	e.logger.Info("chain tips exported", "count", len(tips))
	return nil
}

// Tip reads a previously exported chain head, or domain.ErrNotFound when the
// source has never been exported.
func (e *TipExporter) Tip(ctx context.Context, sourceID string) (domain.ChainTip, error) {
	payload, err := e.client.Get(ctx, tipKeyPrefix+sourceID).Bytes()
	if err == redis.Nil {
		return domain.ChainTip{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ChainTip{}, fmt.Errorf("read tip for %s: %w", sourceID, err)
	}
	var tip domain.ChainTip
	if err := json.Unmarshal(payload, &tip); err != nil {
		return domain.ChainTip{}, fmt.Errorf("decode tip for %s: %w", sourceID, err)
	}
	return tip, nil
}
