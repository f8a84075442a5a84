package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/agglayer/aggkit-prover/db"
	"github.com/agglayer/aggkit-prover/log"
	"github.com/agglayer/aggkit-prover/proofservice/db/migrations"
	"github.com/agglayer/aggkit-prover/proofservice/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

const errWhileRollbackFormat = "error while rolling back tx: %w"

// ProofStorage is the interface that defines the methods to interact with the storage
type ProofStorage interface {
	// GetProofByFingerprint returns a proof entry by its witness fingerprint
	GetProofByFingerprint(fingerprint common.Hash) (types.AggchainProofEntry, error)
	// SaveProofEntry records a new proof request
	SaveProofEntry(ctx context.Context, entry types.AggchainProofEntry) error
	// UpdateProofEntry replaces the stored entry with the given one
	UpdateProofEntry(ctx context.Context, entry types.AggchainProofEntry) error
	// GetProofsByStatus returns the entries matching any of the given statuses
	GetProofsByStatus(statuses []types.ProofStatus) ([]*types.AggchainProofEntry, error)
	// DeleteProofEntry removes a proof entry from the storage
	DeleteProofEntry(ctx context.Context, fingerprint common.Hash) error
}

var _ ProofStorage = (*ProofSQLStorage)(nil)

// ProofSQLStorage is the sqlite backed implementation of ProofStorage
type ProofSQLStorage struct {
	logger *log.Logger
	db     *sql.DB
}

// NewProofSQLStorage runs the migrations and opens the db on dbPath
func NewProofSQLStorage(logger *log.Logger, dbPath string) (*ProofSQLStorage, error) {
	if err := migrations.RunMigrations(dbPath); err != nil {
		return nil, err
	}

	database, err := db.NewSQLiteDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &ProofSQLStorage{
		db:     database,
		logger: logger,
	}, nil
}

// GetProofByFingerprint returns a proof entry by its witness fingerprint
func (p *ProofSQLStorage) GetProofByFingerprint(fingerprint common.Hash) (types.AggchainProofEntry, error) {
	return getProofByFingerprint(p.db, fingerprint)
}

func getProofByFingerprint(database db.Querier, fingerprint common.Hash) (types.AggchainProofEntry, error) {
	var entry types.AggchainProofEntry
	if err := meddler.QueryRow(database, &entry,
		"SELECT * FROM aggchain_proof WHERE fingerprint = $1;", fingerprint.Hex()); err != nil {
		return types.AggchainProofEntry{}, db.ReturnErrNotFound(err)
	}

	return entry, nil
}

// SaveProofEntry records a new proof request
func (p *ProofSQLStorage) SaveProofEntry(ctx context.Context, entry types.AggchainProofEntry) error {
	tx, err := db.NewTx(ctx, p.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				p.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	now := time.Now().Unix()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if err = meddler.Insert(tx, "aggchain_proof", &entry); err != nil {
		if sqliteErr, ok := db.SQLiteErr(err); ok && sqliteErr.ExtendedCode == db.UniqueConstrain {
			return fmt.Errorf("proof entry %s already exists: %w", entry.Fingerprint, err)
		}
		return fmt.Errorf("error inserting proof entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	p.logger.Debugf("inserted proof entry - Fingerprint: %s. Range: %d-%d",
		entry.Fingerprint, entry.StartBlock, entry.EndBlock)

	return nil
}

// UpdateProofEntry replaces the stored entry with the given one
func (p *ProofSQLStorage) UpdateProofEntry(ctx context.Context, entry types.AggchainProofEntry) error {
	tx, err := db.NewTx(ctx, p.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				p.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if _, err = tx.Exec(`UPDATE aggchain_proof
		SET status = $1, proof = $2, public_values = $3, error_code = $4, error_message = $5, updated_at = $6
		WHERE fingerprint = $7;`,
		entry.Status, entry.Proof, entry.PublicValues, entry.ErrorCode, entry.ErrorMessage,
		time.Now().Unix(), entry.Fingerprint.Hex()); err != nil {
		return fmt.Errorf("error updating proof entry: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	p.logger.Debugf("updated proof entry - Fingerprint: %s. Status: %s", entry.Fingerprint, entry.Status)

	return nil
}

// GetProofsByStatus returns the entries matching any of the given statuses
func (p *ProofSQLStorage) GetProofsByStatus(statuses []types.ProofStatus) ([]*types.AggchainProofEntry, error) {
	query := "SELECT * FROM aggchain_proof"
	args := make([]interface{}, len(statuses))

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = statuses[i]
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query += " ORDER BY created_at ASC"

	var entries []*types.AggchainProofEntry
	if err := meddler.QueryAll(p.db, &entries, query, args...); err != nil {
		return nil, err
	}

	return entries, nil
}

// DeleteProofEntry removes a proof entry from the storage
func (p *ProofSQLStorage) DeleteProofEntry(ctx context.Context, fingerprint common.Hash) error {
	tx, err := db.NewTx(ctx, p.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				p.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if _, err = tx.Exec(`DELETE FROM aggchain_proof WHERE fingerprint = $1;`, fingerprint.Hex()); err != nil {
		return fmt.Errorf("error deleting proof entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	p.logger.Debugf("deleted proof entry - Fingerprint: %s", fingerprint)

	return nil
}
