package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/ctxgraph/pkg/types"
)

// createRelationshipWithQuerier stores a directed edge. An empty ID is
// replaced by a new uuid and a zero weight by the default weight.
func (s *SQLiteStorage) createRelationshipWithQuerier(ctx context.Context, q querier, rel *types.Relationship) error {
	if rel.SourceID == "" || rel.TargetID == "" || rel.Type == "" {
		return fmt.Errorf("%w: source, target and type are required", types.ErrInvalidRelationship)
	}
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if rel.Weight == 0 {
		rel.Weight = types.DefaultRelationshipWeight
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO relationships (id, source_id, target_id, type, weight, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		rel.ID, rel.SourceID, rel.TargetID, rel.Type, rel.Weight, rel.Metadata, rel.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("relationship %s: %w", rel.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create relationship: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CreateRelationship(ctx context.Context, rel *types.Relationship) error {
	return s.createRelationshipWithQuerier(ctx, s.querier(), rel)
}

// deleteRelationshipWithQuerier removes an edge by id
func (s *SQLiteStorage) deleteRelationshipWithQuerier(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeleteRelationship(ctx context.Context, id string) error {
	return s.deleteRelationshipWithQuerier(ctx, s.querier(), id)
}

// listRelationshipsWithQuerier returns edges matching the filter in insertion order
func (s *SQLiteStorage) listRelationshipsWithQuerier(ctx context.Context, q querier, filter types.RelationshipFilter) ([]*types.Relationship, error) {
	query := `
		SELECT id, source_id, target_id, type, weight, metadata, created_at
		FROM relationships
		WHERE 1 = 1
	`
	args := make([]interface{}, 0, 8)

	if filter.SourceID != "" {
		query += " AND source_id = ?"
		args = append(args, filter.SourceID)
	}
	if filter.TargetID != "" {
		query += " AND target_id = ?"
		args = append(args, filter.TargetID)
	}
	if filter.EntityID != "" {
		query += " AND (source_id = ? OR target_id = ?)"
		args = append(args, filter.EntityID, filter.EntityID)
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += " AND type IN (" + strings.Join(placeholders, ",") + ")"
	}
	if filter.MinWeight > 0 {
		query += " AND weight >= ?"
		args = append(args, filter.MinWeight)
	}
	if filter.MaxWeight != nil {
		query += " AND weight <= ?"
		args = append(args, *filter.MaxWeight)
	}

	query += " ORDER BY seq"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	rels := make([]*types.Relationship, 0)
	for rows.Next() {
		var rel types.Relationship
		var metadata []byte
		var createdAt sql.NullTime
		if err := rows.Scan(&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type,
			&rel.Weight, &metadata, &createdAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			rel.Metadata = metadata
		}
		if createdAt.Valid {
			rel.CreatedAt = createdAt.Time
		}
		rels = append(rels, &rel)
	}
	return rels, rows.Err()
}

func (s *SQLiteStorage) ListRelationships(ctx context.Context, filter types.RelationshipFilter) ([]*types.Relationship, error) {
	return s.listRelationshipsWithQuerier(ctx, s.querier(), filter)
}

// Transaction delegation

func (t *sqliteTx) CreateRelationship(ctx context.Context, rel *types.Relationship) error {
	return t.storage.createRelationshipWithQuerier(ctx, t.querier(), rel)
}

func (t *sqliteTx) DeleteRelationship(ctx context.Context, id string) error {
	return t.storage.deleteRelationshipWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListRelationships(ctx context.Context, filter types.RelationshipFilter) ([]*types.Relationship, error) {
	return t.storage.listRelationshipsWithQuerier(ctx, t.querier(), filter)
}
