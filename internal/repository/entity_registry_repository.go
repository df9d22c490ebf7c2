package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/catalogaudit/internal/db"
	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const entityRecordColumns = `entity_id, entity_type, entity_name, entity_code, is_active, created_at, updated_at`

// entityRegistryRepository implements EntityRegistryRepository on Postgres
type entityRegistryRepository struct {
	db db.DBTX
}

// NewEntityRegistryRepository creates a new entity registry repository
func NewEntityRegistryRepository(exec db.DBTX) EntityRegistryRepository {
	return &entityRegistryRepository{db: exec}
}

// Upsert relies on the (entity_id, entity_type) primary key so concurrent upserts
// converge on a single row. A nil code keeps the stored one.
func (r *entityRegistryRepository) Upsert(ctx context.Context, entity domain.EntityUpsert) (domain.EntityRecord, error) {
	entity = domain.NormalizeEntityUpsert(entity)

	row := r.db.QueryRow(ctx,
		`INSERT INTO entity_records (entity_id, entity_type, entity_name, entity_code, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)
		 ON CONFLICT (entity_id, entity_type) DO UPDATE
		   SET entity_name = EXCLUDED.entity_name,
		       entity_code = COALESCE(EXCLUDED.entity_code, entity_records.entity_code),
		       is_active   = TRUE,
		       updated_at  = NOW()
		 RETURNING `+entityRecordColumns,
		entity.EntityID,
		string(entity.EntityType),
		entity.EntityName,
		entity.EntityCode,
	)

	record, err := scanEntityRecord(row)
	if err != nil {
		return domain.EntityRecord{}, fmt.Errorf("failed to upsert entity record: %w", err)
	}
	return record, nil
}

// SetActive flips the active flag. A missing record is left missing.
func (r *entityRegistryRepository) SetActive(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType, active bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE entity_records SET is_active = $3, updated_at = NOW()
		 WHERE entity_id = $1 AND entity_type = $2`,
		entityID, string(entityType), active,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity record: %w", err)
	}
	return nil
}

// Get retrieves one record
func (r *entityRegistryRepository) Get(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) (domain.EntityRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entityRecordColumns+` FROM entity_records WHERE entity_id = $1 AND entity_type = $2`,
		entityID, string(entityType),
	)
	record, err := scanEntityRecord(row)
	if err != nil {
		return domain.EntityRecord{}, fmt.Errorf("failed to get entity record: %w", err)
	}
	return record, nil
}

// GetMany resolves a batch of refs in one round trip. Missing refs are omitted.
func (r *entityRegistryRepository) GetMany(ctx context.Context, refs []domain.EntityRef) ([]domain.EntityRecord, error) {
	if len(refs) == 0 {
		return []domain.EntityRecord{}, nil
	}

	ids := make([]uuid.UUID, len(refs))
	types := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.EntityID
		types[i] = string(ref.EntityType)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+entityRecordColumns+`
		 FROM entity_records
		 WHERE (entity_id, entity_type) IN (
		   SELECT * FROM UNNEST($1::uuid[], $2::text[])
		 )`,
		ids, types,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity records: %w", err)
	}
	return collectEntityRecords(rows)
}

// ListByType lists the directory for one type ordered by name
func (r *entityRegistryRepository) ListByType(ctx context.Context, entityType domain.EntityType, isActive bool) ([]domain.EntityRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+entityRecordColumns+`
		 FROM entity_records
		 WHERE entity_type = $1 AND is_active = $2
		 ORDER BY entity_name ASC, entity_id ASC`,
		string(entityType), isActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity records: %w", err)
	}
	return collectEntityRecords(rows)
}

// Delete hard-deletes one record
func (r *entityRegistryRepository) Delete(ctx context.Context, entityID uuid.UUID, entityType domain.EntityType) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM entity_records WHERE entity_id = $1 AND entity_type = $2`,
		entityID, string(entityType),
	); err != nil {
		return fmt.Errorf("failed to delete entity record: %w", err)
	}
	return nil
}

func collectEntityRecords(rows pgx.Rows) ([]domain.EntityRecord, error) {
	defer rows.Close()

	records := []domain.EntityRecord{}
	for rows.Next() {
		record, err := scanEntityRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entity records: %w", err)
	}
	return records, nil
}

func scanEntityRecord(row pgx.Row) (domain.EntityRecord, error) {
	var (
		record     domain.EntityRecord
		entityType string
		code       pgtype.Text
	)
	if err := row.Scan(
		&record.EntityID,
		&entityType,
		&record.EntityName,
		&code,
		&record.IsActive,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return domain.EntityRecord{}, translateNoRows(err)
	}
	record.EntityType = domain.EntityType(entityType)
	if code.Valid {
		value := code.String
		record.EntityCode = &value
	}
	return record, nil
}

func translateNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
