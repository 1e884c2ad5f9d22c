// Package publish pushes audit outcomes to external consumers: alerts and
// reports fan out over Kafka, chain tips are exported through Redis so other
// parties can compare the head of each hash chain out-of-band.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"veedor/internal/domain"
)

const (
	DefaultAlertTopic  = "veedor.alerts"
	DefaultReportTopic = "veedor.reports"
)

// KafkaPublisher emits alerts and run reports. Alerts are keyed by source so
// one source's alerts stay ordered within a partition.
type KafkaPublisher struct {
	client      *kgo.Client
	alertTopic  string
	reportTopic string
	logger      *slog.Logger
}

type KafkaOption func(*KafkaPublisher)

func WithAlertTopic(topic string) KafkaOption {
	return func(p *KafkaPublisher) { p.alertTopic = topic }
}

func WithReportTopic(topic string) KafkaOption {
	return func(p *KafkaPublisher) { p.reportTopic = topic }
}

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) { p.logger = logger }
}

func NewKafkaPublisher(brokers []string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p := &KafkaPublisher{
		client:      client,
		alertTopic:  DefaultAlertTopic,
		reportTopic: DefaultReportTopic,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// PublishAlerts produces every alert synchronously. Publishing failures never
// invalidate the run itself; the caller decides whether they are fatal.
func (p *KafkaPublisher) PublishAlerts(ctx context.Context, alerts []domain.Alert) error {
	records := make([]*kgo.Record, 0, len(alerts))
	for _, alert := range alerts {
		payload, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("encode alert %s: %w", alert.RuleID, err)
		}
		records = append(records, &kgo.Record{
			Topic: p.alertTopic,
			Key:   []byte(alert.Department),
			Value: payload,
		})
	}
	if len(records) == 0 {
		return nil
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d alerts: %w", len(records), err)
	}
	p.logger.Info("alerts published", "count", len(records), "topic", p.alertTopic)
	return nil
}

// PublishReport produces the whole run report as a single record keyed by run
// ID.
func (p *KafkaPublisher) PublishReport(ctx context.Context, report domain.AuditReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.RunID, err)
	}
	record := &kgo.Record{
		Topic: p.reportTopic,
		Key:   []byte(report.RunID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce report %s: %w", report.RunID, err)
	}
	p.logger.Info("report published", "run_id", report.RunID, "topic", p.reportTopic)
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
