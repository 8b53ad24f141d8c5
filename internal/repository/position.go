package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/lxgazer/internal/models"
)

// DefaultListLimit 列表查询默认条数
const DefaultListLimit = 100

// PositionRepository 位置数据仓库
type PositionRepository struct {
	db *DB
}

// NewPositionRepository 创建位置仓库
func NewPositionRepository(db *DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create 创建位置记录
func (r *PositionRepository) Create(ctx context.Context, pos *models.Position) error {
	query := `
		INSERT INTO positions (vin, latitude, longitude, altitude, heading, speed, battery_level, mileage, address, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		pos.VIN,
		pos.Latitude,
		pos.Longitude,
		pos.Altitude,
		pos.Heading,
		pos.Speed,
		pos.BatteryLevel,
		pos.Mileage,
		pos.Address,
		pos.RecordedAt,
	).Scan(&pos.ID)

	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// ListByVIN 获取车辆在 since 之后的位置，按时间倒序
func (r *PositionRepository) ListByVIN(ctx context.Context, vin string, since time.Time, limit int) ([]*models.Position, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `
		SELECT id, vin, latitude, longitude, altitude, heading, speed, battery_level, mileage, address, recorded_at
		FROM positions
		WHERE vin = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, query, vin, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*models.Position, 0)
	for rows.Next() {
		pos := &models.Position{}
		err := rows.Scan(
			&pos.ID,
			&pos.VIN,
			&pos.Latitude,
			&pos.Longitude,
			&pos.Altitude,
			&pos.Heading,
			&pos.Speed,
			&pos.BatteryLevel,
			&pos.Mileage,
			&pos.Address,
			&pos.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, pos)
	}

	return positions, rows.Err()
}
