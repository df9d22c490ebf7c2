package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/catalogaudit/internal/db"
	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const historyColumns = `id, entity_id, entity_type, affected_entities, action, changes, previous_data, new_data, additional_info, comment, created_by, created_at`

type historyRepository struct {
	db db.DBTX
}

// NewHistoryRepository creates a history repository backed by Postgres
func NewHistoryRepository(exec db.DBTX) HistoryRepository {
	return &historyRepository{db: exec}
}

// Insert appends one record. A zero CreatedAt is filled by the database clock.
func (r *historyRepository) Insert(ctx context.Context, record domain.HistoryRecord) (domain.HistoryRecord, error) {
	affectedJSON, err := json.Marshal(record.AffectedEntities)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to marshal affected entities: %w", err)
	}
	changesJSON, err := marshalObject(record.Changes)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to marshal changes: %w", err)
	}
	previousJSON, err := marshalObject(record.PreviousData)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to marshal previous data: %w", err)
	}
	newJSON, err := marshalObject(record.NewData)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to marshal new data: %w", err)
	}
	var additionalJSON []byte
	if len(record.AdditionalInfo) > 0 {
		additionalJSON, err = json.Marshal(record.AdditionalInfo)
		if err != nil {
			return domain.HistoryRecord{}, fmt.Errorf("failed to marshal additional info: %w", err)
		}
	}

	id := record.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	var createdAt *time.Time
	if !record.CreatedAt.IsZero() {
		createdAt = &record.CreatedAt
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO history_records (
		   id, entity_id, entity_type, affected_entities, action, changes,
		   previous_data, new_data, additional_info, comment, created_by, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, clock_timestamp()))
		 RETURNING `+historyColumns,
		id,
		record.EntityID,
		string(record.EntityType),
		affectedJSON,
		string(record.Action),
		changesJSON,
		previousJSON,
		newJSON,
		additionalJSON,
		record.Comment,
		record.CreatedBy,
		createdAt,
	)

	inserted, err := scanHistoryRecord(row)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to insert history record: %w", err)
	}
	return inserted, nil
}

// List returns filtered records newest first
func (r *historyRepository) List(ctx context.Context, filter domain.HistoryFilter, page domain.Pagination) (domain.HistoryPage, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.EntityType != nil {
		args = append(args, string(*filter.EntityType))
		clauses = append(clauses, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by = $%d", len(args)))
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	return r.page(ctx, where, args, page)
}

// ListForEntity matches the entity as primary or anywhere in affected_entities
func (r *historyRepository) ListForEntity(ctx context.Context, entityID uuid.UUID, entityType *domain.EntityType, page domain.Pagination) (domain.HistoryPage, error) {
	where, args, err := entityMatchClause(entityID, entityType)
	if err != nil {
		return domain.HistoryPage{}, err
	}
	return r.page(ctx, "WHERE "+where, args, page)
}

// DeleteForEntity purges every record referencing the entity
func (r *historyRepository) DeleteForEntity(ctx context.Context, entityID uuid.UUID) (int64, error) {
	where, args, err := entityMatchClause(entityID, nil)
	if err != nil {
		return 0, err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM history_records WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entity history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *historyRepository) page(ctx context.Context, where string, args []any, page domain.Pagination) (domain.HistoryPage, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM history_records `+where, args...).Scan(&total); err != nil {
		return domain.HistoryPage{}, fmt.Errorf("failed to count history records: %w", err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := page.Skip
	if offset < 0 {
		offset = 0
	}

	queryArgs := append(append([]any(nil), args...), limit, offset)
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM history_records %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
			historyColumns, where, len(args)+1, len(args)+2),
		queryArgs...,
	)
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("failed to list history records: %w", err)
	}
	defer rows.Close()

	records := []domain.HistoryRecord{}
	for rows.Next() {
		record, scanErr := scanHistoryRecord(rows)
		if scanErr != nil {
			return domain.HistoryPage{}, fmt.Errorf("failed to scan history record: %w", scanErr)
		}
		records = append(records, record)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return domain.HistoryPage{}, fmt.Errorf("failed to iterate history records: %w", rowsErr)
	}

	return domain.HistoryPage{Records: records, Total: total}, nil
}

// entityMatchClause builds "primary OR affected" matching. The jsonb containment
// check is served by the GIN index on affected_entities.
func entityMatchClause(entityID uuid.UUID, entityType *domain.EntityType) (string, []any, error) {
	probe := map[string]any{"entityId": entityID}
	if entityType != nil {
		probe["entityType"] = string(*entityType)
	}
	probeJSON, err := json.Marshal([]any{probe})
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal affected entity probe: %w", err)
	}

	if entityType != nil {
		return `((entity_id = $1 AND entity_type = $2) OR affected_entities @> $3::jsonb)`,
			[]any{entityID, string(*entityType), probeJSON}, nil
	}
	return `(entity_id = $1 OR affected_entities @> $2::jsonb)`, []any{entityID, probeJSON}, nil
}

func scanHistoryRecord(row pgx.Row) (domain.HistoryRecord, error) {
	var (
		record         domain.HistoryRecord
		entityType     string
		action         string
		affectedJSON   []byte
		changesJSON    []byte
		previousJSON   []byte
		newJSON        []byte
		additionalJSON []byte
		comment        pgtype.Text
	)
	if err := row.Scan(
		&record.ID,
		&record.EntityID,
		&entityType,
		&affectedJSON,
		&action,
		&changesJSON,
		&previousJSON,
		&newJSON,
		&additionalJSON,
		&comment,
		&record.CreatedBy,
		&record.CreatedAt,
	); err != nil {
		return domain.HistoryRecord{}, translateNoRows(err)
	}

	record.EntityType = domain.EntityType(entityType)
	record.Action = domain.Action(action)
	if comment.Valid {
		value := comment.String
		record.Comment = &value
	}

	if err := json.Unmarshal(affectedJSON, &record.AffectedEntities); err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to decode affected entities for %s: %w", record.ID, err)
	}
	if err := json.Unmarshal(changesJSON, &record.Changes); err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to decode changes for %s: %w", record.ID, err)
	}
	if err := json.Unmarshal(previousJSON, &record.PreviousData); err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to decode previous data for %s: %w", record.ID, err)
	}
	if err := json.Unmarshal(newJSON, &record.NewData); err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("failed to decode new data for %s: %w", record.ID, err)
	}
	if len(additionalJSON) > 0 {
		if err := json.Unmarshal(additionalJSON, &record.AdditionalInfo); err != nil {
			return domain.HistoryRecord{}, fmt.Errorf("failed to decode additional info for %s: %w", record.ID, err)
		}
	}
	return record, nil
}

// marshalObject encodes a map as a JSON object, writing {} for nil.
func marshalObject[M ~map[string]any](value M) ([]byte, error) {
	if value == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(value)
}
