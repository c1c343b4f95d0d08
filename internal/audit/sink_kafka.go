package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes audit events to a Kafka topic, keyed by beneficiary so
// one beneficiary's trail stays ordered within a partition. It satisfies the
// Store interface for writes; reads go through a persistent store, so
// ListByBeneficiary is unsupported here.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the given brokers. Callers own Close.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka audit sink: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(struct {
		Timestamp     time.Time `json:"timestamp"`
		Action        string    `json:"action"`
		BeneficiaryID string    `json:"beneficiary_id"`
		BenefitType   string    `json:"benefit_type"`
		ReportID      string    `json:"report_id"`
		SocialWorker  string    `json:"social_worker,omitempty"`
		Detail        string    `json:"detail,omitempty"`
	}{
		Timestamp:     event.Timestamp,
		Action:        string(event.Action),
		BeneficiaryID: event.BeneficiaryID,
		BenefitType:   event.BenefitType,
		ReportID:      event.ReportID,
		SocialWorker:  event.SocialWorker,
		Detail:        event.Detail,
	})
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.BeneficiaryID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// ListByBeneficiary is not supported by the Kafka sink; audit reads are
// served by a persistent store.
func (s *KafkaSink) ListByBeneficiary(context.Context, string) ([]Event, error) {
	return nil, fmt.Errorf("kafka audit sink does not support reads")
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
