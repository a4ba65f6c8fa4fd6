package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"nodefleet/domain"
)

const clusterSelectCols = `id, name, created_at, updated_at`

func scanCluster(row interface{ Scan(...any) error }) (*domain.Cluster, error) {
	var c domain.Cluster
	var createdAt, updatedAt any
	if err := row.Scan(&c.ID, &c.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = parseTimePtr(createdAt)
	c.UpdatedAt = parseTimePtr(updatedAt)
	return &c, nil
}

func scanClusters(rows *sql.Rows) ([]*domain.Cluster, error) {
	clusters := []*domain.Cluster{}
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}

func (db *DB) ListClusters(ctx context.Context) ([]*domain.Cluster, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM clusters ORDER BY created_at, id`, clusterSelectCols))
	if err != nil {
		return nil, db.fail("list clusters", domain.Generic, err)
	}
	defer rows.Close()
	clusters, err := scanClusters(rows)
	if err != nil {
		return nil, db.fail("list clusters", domain.Generic, err)
	}
	return clusters, nil
}

func (db *DB) GetCluster(ctx context.Context, id uuid.UUID) (*domain.Cluster, error) {
	row := db.QueryRowContext(ctx, db.Q(fmt.Sprintf(`SELECT %s FROM clusters WHERE id=?`, clusterSelectCols)), id)
	c, err := scanCluster(row)
	if err != nil {
		return nil, db.fail("get cluster", domain.InvalidID, err)
	}
	return c, nil
}

func (db *DB) CreateCluster(ctx context.Context, c *domain.Cluster) (*domain.Cluster, error) {
	row := db.QueryRowContext(ctx, db.Q(fmt.Sprintf(`INSERT INTO clusters (id, name) VALUES (?, ?) RETURNING %s`, clusterSelectCols)),
		c.ID, c.Name)
	created, err := scanCluster(row)
	if err != nil {
		return nil, db.fail("create cluster", domain.AlreadyExists, err)
	}
	return created, nil
}

func (db *DB) UpdateCluster(ctx context.Context, c *domain.Cluster) (*domain.Cluster, error) {
	row := db.QueryRowContext(ctx, db.Q(fmt.Sprintf(`UPDATE clusters SET name=?, updated_at=? WHERE id=? RETURNING %s`, clusterSelectCols)),
		c.Name, db.now(), c.ID)
	updated, err := scanCluster(row)
	if err != nil {
		return nil, db.fail("update cluster", domain.DoesNotExist, err)
	}
	return updated, nil
}

// DeleteCluster removes the cluster and, through the foreign key, its nodes.
func (db *DB) DeleteCluster(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := db.QueryRowContext(ctx, db.Q(`DELETE FROM clusters WHERE id=? RETURNING id`), id).Scan(&deleted)
	if err != nil {
		return uuid.Nil, db.fail("delete cluster", domain.DoesNotExist, err)
	}
	return deleted, nil
}
