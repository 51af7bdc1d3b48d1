package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-wallet-ledger/internal/app/core/usecase"
)

// notificationEvent 發佈到 Kafka 的通知事件
type notificationEvent struct {
	NotificationID string    `json:"notification_id"`
	AccountID      string    `json:"account_id"`
	Kind           string    `json:"kind"`
	Message        string    `json:"message"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher 將通知以 JSON 事件發佈到 Kafka topic
// 只在帳務提交後由 Dispatcher 呼叫，失敗不影響帳務結果
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Notify 實作 usecase.NotificationSink
func (p *Publisher) Notify(ctx context.Context, n domain.Notification) error {
	event := notificationEvent{
		NotificationID: n.ID,
		AccountID:      n.AccountID,
		Kind:           string(n.Kind),
		Message:        n.Message,
		OccurredAt:     n.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.AccountID),
		Value: data,
	})
}

// Close 關閉底層 writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ usecase.NotificationSink = (*Publisher)(nil)
