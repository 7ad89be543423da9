package util

import (
	"context"
	"fmt"

	"github.com/myschema/myschema/internal/config"
	"github.com/myschema/myschema/internal/logger"
	"github.com/myschema/myschema/ir"
)

// GetSnapshotFromDatabase connects to one database and reads its catalog. A database
// that does not exist yet yields an empty snapshot, so a first plan creates everything.
func GetSnapshotFromDatabase(ctx context.Context, conn config.ConnectionConfig, database string, includeViews bool) (*ir.Snapshot, error) {
	db, err := Connect(ctx, NewConnectionConfig(conn, database))
	if err != nil {
		if IsUnknownDatabase(err) {
			logger.Get().Info("Database does not exist yet, planning from an empty schema", "database", database)
			return ir.NewSnapshot(database), nil
		}
		return nil, err
	}
	defer db.Close()

	snapshot, err := ir.NewInspector(db).Inspect(ctx, ir.InspectOptions{IncludeViews: includeViews})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect database %s: %w", database, err)
	}
	return snapshot, nil
}
