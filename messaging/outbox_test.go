package messaging

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"nodefleet/config"
	"nodefleet/domain"
	"nodefleet/store"
)

type fakePublisher struct {
	mu   sync.Mutex
	fail bool
	sent []published
}

type published struct {
	topic, key string
	payload    []byte
}

func (p *fakePublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, published{topic, key, payload})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), &config.DatabaseConfig{URL: "sqlite://" + filepath.Join(t.TempDir(), "outbox.db")})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.EnableOperationOutbox("fleet.ops", EncodeOperationCreated)
	return db
}

func seedOperation(t *testing.T, db *store.DB) *domain.Operation {
	t.Helper()
	ctx := context.Background()
	c, err := db.CreateCluster(ctx, &domain.Cluster{ID: uuid.New(), Name: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	n, err := db.CreateNode(ctx, &domain.Node{ID: uuid.New(), Name: "box", ClusterID: c.ID, Status: domain.NodeStatusPowerOff})
	if err != nil {
		t.Fatal(err)
	}
	op, err := db.CreateOperation(ctx, domain.NewOperation(n.ID, domain.OperationPowerOn))
	if err != nil {
		t.Fatal(err)
	}
	return op
}

func TestDrainPublishesAndAcks(t *testing.T) {
	db := testDB(t)
	op := seedOperation(t, db)
	pub := &fakePublisher{}
	d := NewOutboxDrainer(db, pub, time.Hour)

	if sent := d.drain(); sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if pub.sent[0].topic != "fleet.ops" || pub.sent[0].key != op.NodeID.String() {
		t.Errorf("published = %+v", pub.sent[0])
	}
	env, err := DecodeEnvelope(pub.sent[0].payload)
	if err != nil {
		t.Fatalf("decode published payload: %v", err)
	}
	if env.Payload.(OperationCreated).Operation.ID != op.ID {
		t.Errorf("published operation %v, want %s", env.Payload, op.ID)
	}

	if sent := d.drain(); sent != 0 {
		t.Errorf("second drain sent %d, want 0", sent)
	}
}

func TestDrainRetriesUntilBrokerRecovers(t *testing.T) {
	db := testDB(t)
	seedOperation(t, db)
	pub := &fakePublisher{fail: true}
	d := NewOutboxDrainer(db, pub, time.Hour)

	const failures = 30
	for i := 0; i < failures; i++ {
		if sent := d.drain(); sent != 0 {
			t.Fatalf("drain %d sent %d, want 0", i, sent)
		}
	}
	msgs, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Retries != failures {
		t.Fatalf("pending = %+v, want one message with %d retries", msgs, failures)
	}

	pub.mu.Lock()
	pub.fail = false
	pub.mu.Unlock()
	if sent := d.drain(); sent != 1 {
		t.Errorf("sent after recovery = %d, want 1", sent)
	}
	if pub.count() != 1 {
		t.Errorf("published %d messages after recovery, want 1", pub.count())
	}
}

func TestDrainStopsBatchAtFirstFailure(t *testing.T) {
	db := testDB(t)
	seedOperation(t, db)
	seedOperation(t, db)
	pub := &fakePublisher{fail: true}
	d := NewOutboxDrainer(db, pub, time.Hour)

	d.drain()
	msgs, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Retries != 1 || msgs[1].Retries != 0 {
		t.Fatalf("pending = %+v, want only the first message attempted", msgs)
	}
}

func TestStopDrainsRemaining(t *testing.T) {
	db := testDB(t)
	seedOperation(t, db)
	pub := &fakePublisher{}
	d := NewOutboxDrainer(db, pub, time.Hour)

	d.Start()
	d.Stop()
	d.Stop()
	if pub.count() != 1 {
		t.Errorf("published %d messages on stop, want 1", pub.count())
	}
}
