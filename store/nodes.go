package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"nodefleet/domain"
)

const nodeSelectCols = `id, name, status, cluster_id, created_at, updated_at`

func scanNode(row interface{ Scan(...any) error }) (*domain.Node, error) {
	var n domain.Node
	var createdAt, updatedAt any
	if err := row.Scan(&n.ID, &n.Name, &n.Status, &n.ClusterID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	n.CreatedAt = parseTimePtr(createdAt)
	n.UpdatedAt = parseTimePtr(updatedAt)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*domain.Node, error) {
	nodes := []*domain.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ListNodes returns every node, or with a non-empty filter name only those
// whose own name or whose cluster's name contains it.
func (db *DB) ListNodes(ctx context.Context, filter *domain.NodeFilter) ([]*domain.Node, error) {
	query := `SELECT n.id, n.name, n.status, n.cluster_id, n.created_at, n.updated_at FROM nodes n`
	var args []any
	if filter != nil && filter.Name != "" {
		query += ` JOIN clusters c ON n.cluster_id = c.id WHERE ` +
			db.dialect.Contains("n.name") + ` OR ` + db.dialect.Contains("c.name")
		arg := db.dialect.ContainsArg(filter.Name)
		args = append(args, arg, arg)
	}
	query += ` ORDER BY n.created_at, n.id`

	rows, err := db.QueryContext(ctx, db.Q(query), args...)
	if err != nil {
		return nil, db.fail("list nodes", domain.Generic, err)
	}
	defer rows.Close()
	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, db.fail("list nodes", domain.Generic, err)
	}
	return nodes, nil
}

func (db *DB) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	row := db.QueryRowContext(ctx, db.Q(fmt.Sprintf(`SELECT %s FROM nodes WHERE id=?`, nodeSelectCols)), id)
	n, err := scanNode(row)
	if err != nil {
		return nil, db.fail("get node", domain.InvalidID, err)
	}
	return n, nil
}

func (db *DB) CreateNode(ctx context.Context, n *domain.Node) (*domain.Node, error) {
	row := db.QueryRowContext(ctx, db.Q(fmt.Sprintf(`INSERT INTO nodes (id, name, status, cluster_id) VALUES (?, ?, ?, ?) RETURNING %s`, nodeSelectCols)),
		n.ID, n.Name, n.Status, n.ClusterID)
	created, err := scanNode(row)
	if err != nil {
		return nil, db.fail("create node", domain.AlreadyExists, err)
	}
	return created, nil
}

func (db *DB) UpdateNode(ctx context.Context, n *domain.Node) (*domain.Node, error) {
	row := db.QueryRowContext(ctx, db.Q(fmt.Sprintf(`UPDATE nodes SET name=?, status=?, cluster_id=?, updated_at=? WHERE id=? RETURNING %s`, nodeSelectCols)),
		n.Name, n.Status, n.ClusterID, db.now(), n.ID)
	updated, err := scanNode(row)
	if err != nil {
		return nil, db.fail("update node", domain.DoesNotExist, err)
	}
	return updated, nil
}

func (db *DB) DeleteNode(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := db.QueryRowContext(ctx, db.Q(`DELETE FROM nodes WHERE id=? RETURNING id`), id).Scan(&deleted)
	if err != nil {
		return uuid.Nil, db.fail("delete node", domain.DoesNotExist, err)
	}
	return deleted, nil
}
