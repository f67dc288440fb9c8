package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"RoomArb/internal/domain/models"
	domrepo "RoomArb/internal/domain/repository"
	"RoomArb/pkg/kafka"
)

// Topics names the Kafka topics results are published to.
type Topics struct {
	Opportunities string
	Decisions     string
}

type decisionEnvelope struct {
	Scope    models.Scope    `json:"scope"`
	Decision models.Decision `json:"decision"`
}

// KafkaPublisher publishes opportunities keyed by hotel and decisions keyed by scope.
type KafkaPublisher struct {
	producer *kafka.Producer
	topics   Topics
}

func NewKafkaPublisher(p *kafka.Producer, topics Topics) *KafkaPublisher {
	if topics.Opportunities == "" {
		topics.Opportunities = "roomarb.opportunities"
	}
	if topics.Decisions == "" {
		topics.Decisions = "roomarb.decisions"
	}
	return &KafkaPublisher{producer: p, topics: topics}
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) PublishOpportunities(ctx context.Context, opps []models.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(opps))
	for i, o := range opps {
		b, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("encode opportunity %s: %w", o.ID, err)
		}
		msgs[i] = kafka.Message{
			Key:     []byte(o.HotelID),
			Value:   b,
			Headers: map[string]string{"city": o.City, "recommendation": o.Recommendation},
		}
	}
	return p.producer.PublishBatch(ctx, p.topics.Opportunities, msgs)
}

func (p *KafkaPublisher) PublishDecision(ctx context.Context, scope models.Scope, d models.Decision) error {
	return p.producer.Publish(ctx, p.topics.Decisions, []byte(scopeKey(scope)), decisionEnvelope{Scope: scope, Decision: d})
}

// PublishMessage ships an arbitrary payload, used by the log collector.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func scopeKey(s models.Scope) string {
	switch {
	case s.HotelID != "":
		return "hotel:" + s.HotelID
	case s.City != "":
		return "city:" + s.City
	default:
		return "all"
	}
}
