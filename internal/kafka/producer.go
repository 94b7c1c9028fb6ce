package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Типы событий платформы
const (
	EventWithdrawalRequested = "withdrawal_requested"
	EventCycleCompleted      = "cycle_completed"
)

// WithdrawalRequestedMessage событие о крупном запросе на вывод
type WithdrawalRequestedMessage struct {
	Event     string    `json:"event"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Amount    float64   `json:"amount"`
	NetAmount float64   `json:"net_amount"`
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

// CycleCompletedMessage событие о завершении цикла добычи устройства
type CycleCompletedMessage struct {
	Event      string    `json:"event"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	InstanceID string    `json:"instance_id"`
	DeviceName string    `json:"device_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// Producer Kafka producer для отправки событий платформы
type Producer struct {
	writer              *kafka.Writer
	withdrawalThreshold float64
	logger              *logrus.Logger
}

// NewProducer создает новый Kafka producer
func NewProducer(brokers []string, topic string, withdrawalThreshold float64, logger *logrus.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Асинхронная отправка для производительности
		Compression:  kafka.Snappy,
		BatchTimeout: 10 * time.Millisecond,
	}

	logger.Infof("Kafka producer initialized for topic: %s", topic)

	return &Producer{
		writer:              writer,
		withdrawalThreshold: withdrawalThreshold,
		logger:              logger,
	}
}

// SendWithdrawalRequested отправляет событие о запросе на вывод, если сумма
// превышает порог
func (p *Producer) SendWithdrawalRequested(ctx context.Context, userID, email string, amount, netAmount float64, address string) error {
	// Проверяем, превышает ли сумма порог
	if amount < p.withdrawalThreshold {
		p.logger.Debugf("Withdrawal amount %.2f is below threshold %.2f, skipping Kafka event", amount, p.withdrawalThreshold)
		return nil
	}

	message := WithdrawalRequestedMessage{
		Event:     EventWithdrawalRequested,
		UserID:    userID,
		Email:     email,
		Amount:    amount,
		NetAmount: netAmount,
		Address:   address,
		Timestamp: time.Now(),
	}

	if err := p.send(ctx, userID, message); err != nil {
		return err
	}

	p.logger.Infof("Sent withdrawal event to Kafka: UserID=%s, Amount=%.2f", userID, amount)
	return nil
}

// SendCycleCompleted отправляет событие о завершении цикла добычи
func (p *Producer) SendCycleCompleted(ctx context.Context, userID, email, instanceID, deviceName string) error {
	message := CycleCompletedMessage{
		Event:      EventCycleCompleted,
		UserID:     userID,
		Email:      email,
		InstanceID: instanceID,
		DeviceName: deviceName,
		Timestamp:  time.Now(),
	}

	if err := p.send(ctx, userID, message); err != nil {
		return err
	}

	p.logger.Debugf("Sent cycle completion event to Kafka: UserID=%s, Device=%s", userID, deviceName)
	return nil
}

// send сериализует и отправляет одно сообщение
func (p *Producer) send(ctx context.Context, key string, payload interface{}) error {
	messageBytes, err := json.Marshal(payload)
	if err != nil {
		p.logger.Errorf("Failed to marshal Kafka message: %v", err)
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(key),
		Value: messageBytes,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, kafkaMessage); err != nil {
		p.logger.Errorf("Failed to send message to Kafka: %v", err)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// Close закрывает Kafka producer
func (p *Producer) Close() error {
	if p.writer != nil {
		p.logger.Info("Closing Kafka producer")
		return p.writer.Close()
	}
	return nil
}
