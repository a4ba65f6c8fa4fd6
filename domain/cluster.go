// Package domain holds the fleet records, their closed enumerations and the
// storage contracts that every repository implementation satisfies.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cluster is a named grouping of nodes.
type Cluster struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
