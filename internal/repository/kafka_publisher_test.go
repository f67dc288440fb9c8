package repository

import (
	"context"
	"encoding/json"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoomArb/internal/domain/models"
	"RoomArb/pkg/kafka"
)

type captureWriter struct {
	msgs []kafkago.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaPublisherOpportunities(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaPublisher(kafka.NewProducerWithWriter(w, "gzip", nil), Topics{})

	opps := []models.Opportunity{
		{ID: "o1", HotelID: "h1", City: "Lisbon", Recommendation: models.RecommendBuy},
		{ID: "o2", HotelID: "h2", City: "Lisbon", Recommendation: models.RecommendPass},
	}
	require.NoError(t, pub.PublishOpportunities(context.Background(), opps))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "roomarb.opportunities", w.msgs[0].Topic)
	assert.Equal(t, "h2", string(w.msgs[1].Key))

	var got models.Opportunity
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "o1", got.ID)

	require.NoError(t, pub.PublishOpportunities(context.Background(), nil))
	assert.Len(t, w.msgs, 2)
}

func TestKafkaPublisherDecisionKey(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaPublisher(kafka.NewProducerWithWriter(w, "gzip", nil), Topics{Decisions: "dec"})

	d := models.Decision{Success: true, AgentsUsed: 4}
	require.NoError(t, pub.PublishDecision(context.Background(), models.Scope{City: "Porto"}, d))
	require.NoError(t, pub.PublishDecision(context.Background(), models.Scope{}, d))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "dec", w.msgs[0].Topic)
	assert.Equal(t, "city:Porto", string(w.msgs[0].Key))
	assert.Equal(t, "all", string(w.msgs[1].Key))

	var env decisionEnvelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, "Porto", env.Scope.City)
	assert.Equal(t, 4, env.Decision.AgentsUsed)
}
