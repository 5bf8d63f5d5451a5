package queue

import (
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

// StartKitchenConsumer connects to RabbitMQ, declares the durable
// comanda.events queue, and starts consuming session events.  Each
// event is appended to logs/kitchen.log in a single-line format the
// kitchen screen tails.  Delivery is at-least-once, so redelivered
// events are skipped by event id.  The function runs a reconnect loop
// with doubling backoff and keeps running across broker outages; any
// processing error is logged and the offending message rejected so the
// consumer continues operating.
func StartKitchenConsumer() error {
	url := BrokerURL()

	seen := newRecentIDs(2048)
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("kitchen-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, seen); err != nil {
			log.Printf("kitchen-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, seen *recentIDs) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("kitchen-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(EventQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(EventQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, seen); err != nil {
			log.Printf("kitchen-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, seen *recentIDs) error {
	var ev KitchenEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.EventID != "" && !seen.add(ev.EventID) {
		return nil // redelivery of an event already logged
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "kitchen.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	lines := "[]"
	if len(ev.Lines) > 0 {
		parts := make([]string, 0, len(ev.Lines))
		for _, l := range ev.Lines {
			parts = append(parts, fmt.Sprintf("%dx %s", l.ConfirmedQty, l.Name))
		}
		lines = fmt.Sprintf("[%s]", strings.Join(parts, ","))
	}

	line := fmt.Sprintf("[%s] %s | bar=%d table=%d | ticket=%d | by=%s | state=%s | total=%d cents | lines=%s\n",
		ev.ProducedAt, ev.Type, ev.BarID, ev.TableID, ev.TicketSeq, ev.SubmittedBy, ev.State, ev.TotalCents, lines)

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// recentIDs is a bounded set of recently handled event ids used to
// make at-least-once delivery idempotent.
type recentIDs struct {
	cap   int
	order []string
	set   map[string]struct{}
}

func newRecentIDs(cap int) *recentIDs {
	return &recentIDs{cap: cap, set: make(map[string]struct{}, cap)}
}

// add records the id and reports whether it was new.
func (r *recentIDs) add(id string) bool {
	if _, ok := r.set[id]; ok {
		return false
	}
	if len(r.order) >= r.cap {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.set, oldest)
	}
	r.order = append(r.order, id)
	r.set[id] = struct{}{}
	return true
}
