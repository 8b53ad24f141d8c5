package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/lxgazer/internal/models"
)

const carColumns = `id, vin, name, model, manufacturer, plate_number, picture, software_version, created_at, updated_at`

// CarRepository 车辆数据仓库
type CarRepository struct {
	db *DB
}

// NewCarRepository 创建车辆仓库
func NewCarRepository(db *DB) *CarRepository {
	return &CarRepository{db: db}
}

// Upsert 创建或更新车辆档案，以 VIN 为准
func (r *CarRepository) Upsert(ctx context.Context, car *models.Car) error {
	query := `
		INSERT INTO cars (vin, name, model, manufacturer, plate_number, picture, software_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (vin) DO UPDATE SET
			name = EXCLUDED.name,
			model = EXCLUDED.model,
			manufacturer = EXCLUDED.manufacturer,
			plate_number = EXCLUDED.plate_number,
			picture = EXCLUDED.picture,
			software_version = EXCLUDED.software_version,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	now := time.Now()
	err := r.db.Pool.QueryRow(ctx, query,
		car.VIN,
		car.Name,
		car.Model,
		car.Manufacturer,
		car.PlateNumber,
		car.Picture,
		car.SoftwareVersion,
		now,
		now,
	).Scan(&car.ID, &car.CreatedAt)

	if err != nil {
		return fmt.Errorf("upsert car: %w", err)
	}

	car.UpdatedAt = now
	return nil
}

// GetByVIN 通过 VIN 获取车辆
func (r *CarRepository) GetByVIN(ctx context.Context, vin string) (*models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE vin = $1`
	car := &models.Car{}
	err := r.db.Pool.QueryRow(ctx, query, vin).Scan(
		&car.ID,
		&car.VIN,
		&car.Name,
		&car.Model,
		&car.Manufacturer,
		&car.PlateNumber,
		&car.Picture,
		&car.SoftwareVersion,
		&car.CreatedAt,
		&car.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get car by vin: %w", err)
	}
	return car, nil
}
