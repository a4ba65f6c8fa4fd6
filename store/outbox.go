package store

import (
	"time"
)

type OutboxMessage struct {
	ID        int64
	Topic     string
	Key       string
	Payload   []byte
	MsgType   string
	Retries   int
	CreatedAt time.Time
	SentAt    *time.Time
}

// ListPendingOutbox returns unsent messages, oldest first. Messages stay
// pending until acked, however many publishes have failed.
func (db *DB) ListPendingOutbox(limit int) ([]*OutboxMessage, error) {
	rows, err := db.Query(db.Q(`SELECT id, topic, msg_key, payload, msg_type, retries, created_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []*OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		var createdAt any
		if err := rows.Scan(&m.ID, &m.Topic, &m.Key, &m.Payload, &m.MsgType, &m.Retries, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (db *DB) AckOutbox(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE outbox SET sent_at=? WHERE id=?`), db.now(), id)
	return err
}

func (db *DB) IncrementOutboxRetries(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE outbox SET retries=retries+1 WHERE id=?`), id)
	return err
}

// PurgeSentOutbox deletes messages acknowledged before cutoff.
func (db *DB) PurgeSentOutbox(cutoff time.Time) (int64, error) {
	res, err := db.Exec(db.Q(`DELETE FROM outbox WHERE sent_at IS NOT NULL AND sent_at < ?`), db.dialect.Timestamp(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
