package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes notifications to a topic exchange with routing key
// "terminal.<mti>".
type AMQPSink struct {
	channel  amqpChannel
	exchange string
}

func NewAMQPSink(ch amqpChannel, exchange string) *AMQPSink {
	return &AMQPSink{channel: ch, exchange: exchange}
}

func (s *AMQPSink) Publish(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	err = s.channel.PublishWithContext(ctx,
		s.exchange,
		RoutingKey(n),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   n.ID,
			Timestamp:   n.Timestamp,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing notification %s: %w", n.ID, err)
	}
	return nil
}

func RoutingKey(n Notification) string {
	return "terminal." + n.MTI
}

// DialAMQP connects to the broker, opens a channel and declares the topic
// exchange. The returned connection must be closed by the caller.
func DialAMQP(url, exchange string) (*AMQPSink, *amqp.Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{
			"connection_name": "terminal_gateway",
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dialing amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("opening amqp channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	return NewAMQPSink(ch, exchange), conn, nil
}
