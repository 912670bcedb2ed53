package repository

import (
	"context"
	"fmt"

	"MarketBrief/internal/domain/models"
	domrepo "MarketBrief/internal/domain/repository"
	pkgkafka "MarketBrief/pkg/kafka"
	applogger "MarketBrief/pkg/logger"
)

// KafkaOutputSink pushes completed run records to a Kafka topic, keyed by
// ticker so records for the same company land on the same partition.
type KafkaOutputSink struct {
	producer *pkgkafka.Producer
	topic    string
	logger   *applogger.Logger
}

func NewKafkaOutputSink(producer *pkgkafka.Producer, topic string, lgr *applogger.Logger) domrepo.OutputSink {
	return &KafkaOutputSink{producer: producer, topic: topic, logger: lgr}
}

func (s *KafkaOutputSink) Push(ctx context.Context, record *models.RunRecord) error {
	if err := s.producer.Publish(ctx, s.topic, []byte(record.Ticker), record); err != nil {
		return fmt.Errorf("publish run record for %s: %w", record.Ticker, err)
	}
	s.logger.Info("run record published",
		applogger.String("topic", s.topic),
		applogger.String("ticker", record.Ticker))
	return nil
}

func (s *KafkaOutputSink) Close() error {
	return s.producer.Close()
}

// LogOutputSink is the fallback sink for deployments without Kafka. Records
// are written to the structured log so one-shot CLI runs still surface their
// output.
type LogOutputSink struct {
	logger *applogger.Logger
}

func NewLogOutputSink(lgr *applogger.Logger) domrepo.OutputSink {
	return &LogOutputSink{logger: lgr}
}

func (s *LogOutputSink) Push(_ context.Context, record *models.RunRecord) error {
	s.logger.Info("run record",
		applogger.String("ticker", record.Ticker),
		applogger.Int("report_chars", len(record.Report)),
		applogger.Bool("has_benchmark", record.SP500Data != nil),
		applogger.Bool("has_sector", record.SectorData != nil),
		applogger.Bool("has_profile", record.ProfileData != nil),
		applogger.Bool("has_startup", len(record.StartupData) > 0))
	return nil
}

func (s *LogOutputSink) Close() error { return nil }
