package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nodefleet/log"
	"nodefleet/store"
)

const (
	outboxBatchSize = 50
	outboxRetention = 24 * time.Hour
)

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db        *store.DB
	publisher Publisher
	interval  time.Duration
	log       zerolog.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

func NewOutboxDrainer(db *store.DB, publisher Publisher, interval time.Duration) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDrainer{
		db:        db,
		publisher: publisher,
		interval:  interval,
		log:       log.WithComponent("outbox"),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (d *OutboxDrainer) Start() {
	go d.run()
}

// Stop ends the drain loop and waits for an in-flight drain to finish.
func (d *OutboxDrainer) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
	<-d.done
}

func (d *OutboxDrainer) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			d.drain()
			return
		case <-ticker.C:
			d.drain()
			d.purge()
		}
	}
}

// drain publishes one batch and reports how many messages were sent. The
// first failed publish ends the batch so later messages are not sent ahead
// of it; it is retried on the next tick.
func (d *OutboxDrainer) drain() int {
	msgs, err := d.db.ListPendingOutbox(outboxBatchSize)
	if err != nil {
		d.log.Error().Err(err).Msg("list pending")
		return 0
	}
	sent := 0
	for _, msg := range msgs {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := d.publisher.Publish(ctx, msg.Topic, msg.Key, msg.Payload)
		cancel()
		if err != nil {
			d.log.Warn().Err(err).Int64("outbox_id", msg.ID).Str("topic", msg.Topic).Int("retries", msg.Retries+1).Msg("publish failed")
			if err := d.db.IncrementOutboxRetries(msg.ID); err != nil {
				d.log.Error().Err(err).Int64("outbox_id", msg.ID).Msg("increment retries")
			}
			break
		}
		if err := d.db.AckOutbox(msg.ID); err != nil {
			d.log.Error().Err(err).Int64("outbox_id", msg.ID).Msg("ack")
			continue
		}
		sent++
	}
	if sent > 0 {
		d.log.Debug().Int("sent", sent).Msg("outbox drained")
	}
	return sent
}

func (d *OutboxDrainer) purge() {
	n, err := d.db.PurgeSentOutbox(time.Now().Add(-outboxRetention))
	if err != nil {
		d.log.Error().Err(err).Msg("purge sent")
		return
	}
	if n > 0 {
		d.log.Debug().Int64("purged", n).Msg("outbox purged")
	}
}
