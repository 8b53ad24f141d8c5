package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/lxgazer/internal/models"
)

// CommandRepository 远程控制记录仓库
type CommandRepository struct {
	db *DB
}

// NewCommandRepository 创建指令记录仓库
func NewCommandRepository(db *DB) *CommandRepository {
	return &CommandRepository{db: db}
}

// Create 记录一次指令及其响应
func (r *CommandRepository) Create(ctx context.Context, log *models.CommandLog) error {
	query := `
		INSERT INTO commands (vin, command, params, response, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	err := r.db.Pool.QueryRow(ctx, query,
		log.VIN,
		log.Command,
		log.Params,
		log.Response,
		log.Success,
		log.CreatedAt,
	).Scan(&log.ID)

	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// ListByVIN 最近的指令记录
func (r *CommandRepository) ListByVIN(ctx context.Context, vin string, limit int) ([]*models.CommandLog, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `
		SELECT id, vin, command, params, response, success, created_at
		FROM commands WHERE vin = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, vin, limit)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.CommandLog, 0)
	for rows.Next() {
		log := &models.CommandLog{}
		err := rows.Scan(
			&log.ID,
			&log.VIN,
			&log.Command,
			&log.Params,
			&log.Response,
			&log.Success,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
