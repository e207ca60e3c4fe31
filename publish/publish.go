// Package publish fans tagged AIS messages out to a RabbitMQ exchange,
// the same reconnect-and-publish pattern the console uses to push
// aircraft updates (updater.go), adapted to stream one message at a
// time instead of ticking over an in-memory store.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/streadway/amqp"

	"github.com/billglover/aissegment/segmenter"
)

// Publisher fans out TaggedMessages to a fanout exchange. It is not
// safe for concurrent use by multiple goroutines without external
// synchronization around Publish.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial connects to the broker at conStr and declares the named fanout
// exchange. The returned Publisher reopens its channel automatically if
// the broker closes it, for as long as ctx is alive.
func Dial(ctx context.Context, conStr, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(conStr)
	if err != nil {
		return nil, fmt.Errorf("publish: failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("publish: failed to open a channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // kind
		false,    // durable
		false,    // delete when unused
		false,    // exclusive
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("publish: failed to declare exchange: %w", err)
	}

	p := &Publisher{conn: conn, ch: ch, exchange: exchange}

	closures := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-closures:
				newCh, err := conn.Channel()
				if err != nil {
					fmt.Fprintf(os.Stderr, "publish: failed to reopen channel: %v\n", err)
					return
				}
				p.ch = newCh
				closures = newCh.NotifyClose(make(chan *amqp.Error, 1))
			}
		}
	}()

	return p, nil
}

// Close tears down the channel and connection.
func (p *Publisher) Close() error {
	p.ch.Close()
	return p.conn.Close()
}

// Publish marshals tm as JSON and publishes it to the fanout exchange.
func (p *Publisher) Publish(tm segmenter.TaggedMessage) error {
	body, err := json.Marshal(tm)
	if err != nil {
		return fmt.Errorf("publish: failed to marshal tagged message: %w", err)
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		Body:         body,
	}

	return p.ch.Publish(
		p.exchange, // exchange
		"",         // routing key, ignored by fanout
		false,      // mandatory
		false,      // immediate
		msg,
	)
}
