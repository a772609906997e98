package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/parking-schedule/internal/queue"
	"github.com/iliyamo/parking-schedule/internal/store"
)

// publishTimeout bounds one audit publish, including the broker dial.
const publishTimeout = 5 * time.Second

// PublishScheduleChanged publishes event to the "schedule.changed" queue.
// It never panics; errors are logged and returned so the caller can choose
// to ignore them.  Messages are marked as persistent.
func PublishScheduleChanged(ctx context.Context, url string, event q.ScheduleChangedEvent) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Declaring is idempotent; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(q.ScheduleChangedQueue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.ScheduleChangedQueue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

// AuditListener returns a store listener that publishes every applied
// change in the background.  Publishing is best effort: failures are
// logged by PublishScheduleChanged and otherwise ignored.
func AuditListener(url string) store.Listener {
	return func(ch store.Change) {
		ev := q.NewScheduleChangedEvent(ch, time.Now())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			_ = PublishScheduleChanged(ctx, url, ev)
		}()
	}
}
