package ports

import (
	"context"

	"clusterkit/domain/core"
	"clusterkit/domain/data"
)

// DataStore persists data containers under a name.
type DataStore interface {
	// Save writes the container, replacing any container stored under the same name.
	Save(ctx context.Context, name core.DatasetName, d *data.Data) error

	// Load reads a container back. Returns core.ErrNotFound if nothing is stored under name.
	Load(ctx context.Context, name core.DatasetName) (*data.Data, error)

	// List returns the stored names in ascending order.
	List(ctx context.Context) ([]core.DatasetName, error)

	// Delete removes a stored container. Returns core.ErrNotFound if nothing is stored under name.
	Delete(ctx context.Context, name core.DatasetName) error
}
