package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"nodefleet/domain"
)

func TestCreateOperationTracksStatus(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := seedCluster(t, db, "alpha")
	n := seedNode(t, db, c.ID, "box", domain.NodeStatusPowerOff)

	seq := []domain.OperationType{
		domain.OperationPowerOn,
		domain.OperationReboot,
		domain.OperationReboot,
		domain.OperationPowerOff,
		domain.OperationPowerOn,
	}
	seen := map[uuid.UUID]bool{}
	for k, typ := range seq {
		op, err := db.CreateOperation(ctx, domain.NewOperation(n.ID, typ))
		if err != nil {
			t.Fatalf("op %d (%s): %v", k, typ, err)
		}
		if op.NodeID != n.ID || op.OperationType != typ {
			t.Errorf("op %d = %+v", k, op)
		}
		if op.CreatedAt == nil {
			t.Errorf("op %d: created_at not populated", k)
		}
		if seen[op.ID] {
			t.Errorf("op %d: duplicate id %s", k, op.ID)
		}
		seen[op.ID] = true

		node, err := db.GetNode(ctx, n.ID)
		if err != nil {
			t.Fatalf("get node: %v", err)
		}
		if node.Status != typ.TargetStatus() {
			t.Errorf("after op %d (%s): status = %s, want %s", k, typ, node.Status, typ.TargetStatus())
		}
		if node.UpdatedAt == nil {
			t.Errorf("after op %d: updated_at not set", k)
		}

		ops, err := db.ListOperations(ctx, n.ID)
		if err != nil {
			t.Fatalf("list operations: %v", err)
		}
		if len(ops) != k+1 {
			t.Errorf("after op %d: %d operation rows, want %d", k, len(ops), k+1)
		}
	}
}

func TestCreateOperationMissingNode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	missing := uuid.New()

	_, err := db.CreateOperation(ctx, domain.NewOperation(missing, domain.OperationPowerOn))
	if !errors.Is(err, domain.ErrDoesNotExist) {
		t.Fatalf("got %v, want DoesNotExist", err)
	}
	ops, err := db.ListOperations(ctx, missing)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Errorf("%d operation rows left behind, want 0", len(ops))
	}
}

func TestCreateOperationUpdateFailureRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := seedCluster(t, db, "alpha")
	n := seedNode(t, db, c.ID, "box", domain.NodeStatusPowerOff)

	if _, err := db.Exec(`CREATE TRIGGER fail_node_update BEFORE UPDATE ON nodes BEGIN SELECT RAISE(ABORT, 'boom'); END;`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	_, err := db.CreateOperation(ctx, domain.NewOperation(n.ID, domain.OperationPowerOn))
	if !errors.Is(err, domain.ErrDoesNotExist) {
		t.Fatalf("got %v, want DoesNotExist", err)
	}
	ops, err := db.ListOperations(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Errorf("%d operation rows survived rollback, want 0", len(ops))
	}
	node, err := db.GetNode(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if node.Status != domain.NodeStatusPowerOff {
		t.Errorf("status = %s, want poweroff", node.Status)
	}
}

func TestCreateOperationInsertFailureKeepsStatus(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := seedCluster(t, db, "alpha")
	n := seedNode(t, db, c.ID, "box", domain.NodeStatusPowerOff)

	first := domain.NewOperation(n.ID, domain.OperationPowerOn)
	if _, err := db.CreateOperation(ctx, first); err != nil {
		t.Fatalf("first op: %v", err)
	}

	dup := &domain.Operation{ID: first.ID, NodeID: n.ID, OperationType: domain.OperationReboot}
	_, err := db.CreateOperation(ctx, dup)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("got %v, want AlreadyExists", err)
	}
	node, err := db.GetNode(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if node.Status != domain.NodeStatusPowerOn {
		t.Errorf("status = %s, want poweron (unchanged)", node.Status)
	}
}

func TestCreateOperationRejectsUnknownType(t *testing.T) {
	db := testDB(t)
	_, err := db.CreateOperation(context.Background(), &domain.Operation{ID: uuid.New(), NodeID: uuid.New(), OperationType: "explode"})
	if !errors.Is(err, domain.ErrGeneric) {
		t.Errorf("got %v, want Generic", err)
	}
}

func TestCreateOperationCancelledContext(t *testing.T) {
	db := testDB(t)
	c := seedCluster(t, db, "alpha")
	n := seedNode(t, db, c.ID, "box", domain.NodeStatusPowerOff)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := db.CreateOperation(ctx, domain.NewOperation(n.ID, domain.OperationPowerOn)); err == nil {
		t.Fatal("expected error with cancelled context")
	}
	node, err := db.GetNode(context.Background(), n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if node.Status != domain.NodeStatusPowerOff {
		t.Errorf("status = %s, want poweroff", node.Status)
	}
}

func TestOperationOutbox(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c := seedCluster(t, db, "alpha")
	n := seedNode(t, db, c.ID, "box", domain.NodeStatusPowerOff)

	db.EnableOperationOutbox("fleet.ops", func(op *domain.Operation, status domain.NodeStatus) (string, []byte, error) {
		data, err := json.Marshal(map[string]any{"operation": op, "node_status": status})
		return "operation_created", data, err
	})

	op, err := db.CreateOperation(ctx, domain.NewOperation(n.ID, domain.OperationReboot))
	if err != nil {
		t.Fatalf("create operation: %v", err)
	}
	if _, err := db.CreateOperation(ctx, domain.NewOperation(uuid.New(), domain.OperationReboot)); err == nil {
		t.Fatal("expected failure for missing node")
	}

	msgs, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("pending = %d, want 1 (failed operation must not enqueue)", len(msgs))
	}
	m := msgs[0]
	if m.Topic != "fleet.ops" || m.MsgType != "operation_created" || m.Key != n.ID.String() {
		t.Errorf("message = %+v", m)
	}
	var body struct {
		Operation  domain.Operation  `json:"operation"`
		NodeStatus domain.NodeStatus `json:"node_status"`
	}
	if err := json.Unmarshal(m.Payload, &body); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if body.Operation.ID != op.ID || body.NodeStatus != domain.NodeStatusRebooting {
		t.Errorf("payload = %+v", body)
	}

	for i := 0; i < 25; i++ {
		if err := db.IncrementOutboxRetries(m.ID); err != nil {
			t.Fatal(err)
		}
	}
	msgs, err = db.ListPendingOutbox(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Retries != 25 {
		t.Errorf("after 25 failed publishes pending = %+v, want the message with 25 retries", msgs)
	}
	if err := db.AckOutbox(m.ID); err != nil {
		t.Fatal(err)
	}
	if msgs, _ := db.ListPendingOutbox(10); len(msgs) != 0 {
		t.Errorf("acked message still pending")
	}
}
