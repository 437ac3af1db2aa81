package repomanager

import (
	"context"
	"database/sql"

	"github.com/confideapp/confide/internal/dbx"
	"github.com/confideapp/confide/internal/server/repositories/principals"
	"github.com/confideapp/confide/internal/server/repositories/revoked"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Principals(db dbx.DBTX) principals.Repository
	Revoked(db dbx.DBTX) revoked.Repository
}
