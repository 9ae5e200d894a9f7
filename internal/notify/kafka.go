package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/haakonmt/girobatch/internal/models"
)

// Event kinds published to the notification topic. An external mailer
// consumes them and renders the actual messages.
const (
	EventDueNotice = "due_notice"
	EventReceipt   = "donation_receipt"
)

type event struct {
	Kind        string    `json:"kind"`
	AgreementID string    `json:"agreement_id,omitempty"`
	DonationID  string    `json:"donation_id,omitempty"`
	KID         string    `json:"kid,omitempty"`
	AmountOre   int64     `json:"amount_ore,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// KafkaNotifier publishes notification events. Produces are synchronous
// so the caller's fire-and-forget logging sees real broker errors.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
}

// NewKafkaNotifier connects a producer to the given brokers.
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: kafka client: %w", err)
	}
	return &KafkaNotifier{client: client, topic: topic}, nil
}

func (n *KafkaNotifier) Close() {
	n.client.Close()
}

func (n *KafkaNotifier) SendDueNotice(ctx context.Context, agreement models.Agreement) error {
	return n.publish(ctx, agreement.KID, event{
		Kind:        EventDueNotice,
		AgreementID: agreement.ID.String(),
		KID:         agreement.KID,
		AmountOre:   agreement.AmountOre,
		OccurredAt:  time.Now().UTC(),
	})
}

func (n *KafkaNotifier) SendReceipt(ctx context.Context, donationID uuid.UUID) error {
	return n.publish(ctx, donationID.String(), event{
		Kind:       EventReceipt,
		DonationID: donationID.String(),
		OccurredAt: time.Now().UTC(),
	})
}

func (n *KafkaNotifier) publish(ctx context.Context, key string, ev event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(key),
		Value: payload,
	}
	if err := n.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("notify: produce %s: %w", ev.Kind, err)
	}
	return nil
}
