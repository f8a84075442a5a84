package migrations

import (
	_ "embed"

	"github.com/agglayer/aggkit-prover/db"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed proofservice0001.sql
var mig001 string

func RunMigrations(dbPath string) error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "proofservice0001",
				Up: []string{mig001},
			},
		},
	}

	return db.RunMigrations(dbPath, migrations)
}
