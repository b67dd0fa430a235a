package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-reservations/internal/models"
)

// Event types streamed to the reservation-events topic.
const (
	EventReservationCreated   = "reservation_created"
	EventReservationPaid      = "reservation_paid"
	EventReservationCancelled = "reservation_cancelled"
	EventReservationExpired   = "reservation_expired"
	EventPassengerBoarded     = "passenger_boarded"
)

// Event is the envelope written to Kafka for every lifecycle transition.
type Event struct {
	Type        string               `json:"type"`
	Reservation *models.Reservation  `json:"reservation,omitempty"`
	Pass        *models.BoardingPass `json:"boarding_pass,omitempty"`
	OccurredAt  time.Time            `json:"occurred_at"`
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

func (p *Producer) publish(key string, event Event) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

func (p *Producer) PublishReservationCreated(res models.Reservation) error {
	return p.publish(fmt.Sprintf("%d", res.ID), Event{
		Type:        EventReservationCreated,
		Reservation: &res,
		OccurredAt:  time.Now(),
	})
}

func (p *Producer) PublishReservationPaid(res models.Reservation) error {
	return p.publish(fmt.Sprintf("%d", res.ID), Event{
		Type:        EventReservationPaid,
		Reservation: &res,
		OccurredAt:  time.Now(),
	})
}

func (p *Producer) PublishReservationCancelled(res models.Reservation) error {
	return p.publish(fmt.Sprintf("%d", res.ID), Event{
		Type:        EventReservationCancelled,
		Reservation: &res,
		OccurredAt:  time.Now(),
	})
}

func (p *Producer) PublishReservationExpired(res models.Reservation) error {
	return p.publish(fmt.Sprintf("%d", res.ID), Event{
		Type:        EventReservationExpired,
		Reservation: &res,
		OccurredAt:  time.Now(),
	})
}

// PublishPassengerBoarded streams a successful gate scan. The QR payload is
// stripped to keep the message small.
func (p *Producer) PublishPassengerBoarded(pass models.BoardingPass) error {
	pass.QRCode = nil
	return p.publish(pass.Code, Event{
		Type:       EventPassengerBoarded,
		Pass:       &pass,
		OccurredAt: time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
