// Package queue contains the background consumer that listens to the
// schedule.changed queue and writes one line per change to
// <logDir>/schedule.log.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ScheduleChangedQueue is the durable queue change events are routed to.
const ScheduleChangedQueue = "schedule.changed"

// StartChangeConsumer connects to RabbitMQ, declares the schedule.changed
// queue (durable) and appends every received event to logDir/schedule.log.
// Dial failures are retried with a doubling backoff capped at 30s.  The
// function only returns once ctx is cancelled.
func StartChangeConsumer(ctx context.Context, url, logDir string) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("change-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, logDir)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("change-consumer: consume loop ended: %v; reconnecting", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("change-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(ScheduleChangedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, ScheduleChangedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleMessage(d.Body, logDir); err != nil {
				log.Printf("change-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event body and appends it to the audit log.
func HandleMessage(body []byte, logDir string) error {
	var ev ScheduleChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", logDir, err)
	}
	fpath := filepath.Join(logDir, "schedule.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatEvent renders ev as a single human-friendly log line ending in a
// newline.  Freed hours are shown as "-".
func FormatEvent(ev ScheduleChangedEvent) string {
	slots := make([]string, 0, len(ev.Slots))
	for _, s := range ev.Slots {
		occupant := s.Occupant
		if occupant == "" {
			occupant = "-"
		}
		occupant = strings.ReplaceAll(occupant, "\n", " ")
		slots = append(slots, fmt.Sprintf("%s/%s/%02d=%q", s.Date, s.SpotID, s.Hour, occupant))
	}
	return fmt.Sprintf("[%s] Schedule changed | event_id=%s | origin=%s | slots=[%s]\n",
		ev.ChangedAt, ev.EventID, ev.Origin, strings.Join(slots, ","))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
