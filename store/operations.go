package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"nodefleet/domain"
)

const operationSelectCols = `id, operation_type, node_id, created_at, updated_at`

// OperationEventEncoder renders the outbox message recorded alongside a new
// operation.
type OperationEventEncoder func(op *domain.Operation, status domain.NodeStatus) (msgType string, payload []byte, err error)

type operationOutbox struct {
	topic  string
	encode OperationEventEncoder
}

// EnableOperationOutbox makes CreateOperation enqueue an outbox message on
// topic in the same transaction as the operation. Call before serving.
func (db *DB) EnableOperationOutbox(topic string, encode OperationEventEncoder) {
	db.outbox = &operationOutbox{topic: topic, encode: encode}
}

func scanOperation(row interface{ Scan(...any) error }) (*domain.Operation, error) {
	var op domain.Operation
	var createdAt, updatedAt any
	if err := row.Scan(&op.ID, &op.OperationType, &op.NodeID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	op.CreatedAt = parseTimePtr(createdAt)
	op.UpdatedAt = parseTimePtr(updatedAt)
	return &op, nil
}

// CreateOperation inserts op and sets its node's status to the operation's
// target status in one transaction. An insert failure leaves the node
// untouched; a missing node or failed update leaves no operation row.
func (db *DB) CreateOperation(ctx context.Context, op *domain.Operation) (*domain.Operation, error) {
	if !op.OperationType.Valid() {
		return nil, db.fail("create operation", domain.Generic, fmt.Errorf("invalid operation type %q", op.OperationType))
	}
	status := op.OperationType.TargetStatus()

	var created *domain.Operation
	err := db.ExecTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, db.Q(fmt.Sprintf(`INSERT INTO operations (id, operation_type, node_id) VALUES (?, ?, ?) RETURNING %s`, operationSelectCols)),
			op.ID, op.OperationType, op.NodeID)
		inserted, err := scanOperation(row)
		if err != nil {
			return db.fail("insert operation", domain.AlreadyExists, err)
		}

		res, err := tx.ExecContext(ctx, db.Q(`UPDATE nodes SET status=?, updated_at=? WHERE id=?`),
			status, db.now(), op.NodeID)
		if err != nil {
			return db.fail("update node status", domain.DoesNotExist, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return db.fail("update node status", domain.DoesNotExist, err)
		}
		if affected == 0 {
			return db.fail("update node status", domain.DoesNotExist, fmt.Errorf("node %s not found", op.NodeID))
		}

		if db.outbox != nil {
			if err := db.enqueueOperationEvent(ctx, tx, inserted, status); err != nil {
				return db.fail("enqueue operation event", domain.Generic, err)
			}
		}
		created = inserted
		return nil
	})
	if err != nil {
		var re *domain.RepositoryError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, db.fail("create operation", domain.Generic, err)
	}
	return created, nil
}

func (db *DB) enqueueOperationEvent(ctx context.Context, tx *sql.Tx, op *domain.Operation, status domain.NodeStatus) error {
	msgType, payload, err := db.outbox.encode(op, status)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, db.Q(`INSERT INTO outbox (topic, msg_key, payload, msg_type) VALUES (?, ?, ?, ?)`),
		db.outbox.topic, op.NodeID.String(), payload, msgType)
	return err
}

// ListOperations returns the operations recorded for a node, oldest first.
func (db *DB) ListOperations(ctx context.Context, nodeID uuid.UUID) ([]*domain.Operation, error) {
	rows, err := db.QueryContext(ctx, db.Q(fmt.Sprintf(`SELECT %s FROM operations WHERE node_id=? ORDER BY created_at, id`, operationSelectCols)), nodeID)
	if err != nil {
		return nil, db.fail("list operations", domain.Generic, err)
	}
	defer rows.Close()
	ops := []*domain.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, db.fail("list operations", domain.Generic, err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, db.fail("list operations", domain.Generic, err)
	}
	return ops, nil
}
