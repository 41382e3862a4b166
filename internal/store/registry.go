package store

import (
	"log"

	"github.com/jpratt/chatterd/internal/apperr"
	"github.com/jpratt/chatterd/internal/database"
)

// ConnectionRegistry is the single source of truth for which connections are
// live and which user owns each of them. A user may hold several connections
// at once (multi-device).
type ConnectionRegistry struct {
	log *log.Logger
	db  database.Repository
}

func NewConnectionRegistry(logger *log.Logger, db database.Repository) *ConnectionRegistry {
	return &ConnectionRegistry{
		log: logger,
		db:  db,
	}
}

// Register records that connectionId belongs to userId. Registering the same
// connection id again is an upsert, not an error.
func (r *ConnectionRegistry) Register(userId, connectionId string) error {
	if _, err := r.db.CreateConnection(connectionId, userId); err != nil {
		return apperr.Storage("failed to register connection", err)
	}

	return nil
}

// Unregister removes the mapping for connectionId. Unknown ids are a no-op.
func (r *ConnectionRegistry) Unregister(connectionId string) error {
	if err := r.db.DeleteConnection(connectionId); err != nil {
		return apperr.Storage("failed to unregister connection", err)
	}

	return nil
}

// ClearAll wipes every mapping. Called once at process start so no entry
// from a previous run is ever treated as live.
func (r *ConnectionRegistry) ClearAll() error {
	if err := r.db.DeleteAllConnections(); err != nil {
		return apperr.Storage("failed to clear connections", err)
	}

	return nil
}

// ConnectionsFor returns the live connection ids for userId, empty if the
// user is offline.
func (r *ConnectionRegistry) ConnectionsFor(userId string) ([]string, error) {
	conns, err := r.db.ListConnectionsByUserId(userId)
	if err != nil {
		return nil, apperr.Storage("failed to list connections", err)
	}

	ids := make([]string, 0, len(conns))
	for _, conn := range conns {
		ids = append(ids, conn.Id)
	}

	return ids, nil
}
