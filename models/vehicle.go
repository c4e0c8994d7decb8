package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
	"github.com/shopspring/decimal"
)

// Vehicle carries truck stock. Each vehicle owns a hidden mobile warehouse so
// its truck_stock bucket lives in the same ledger as every other quantity.
type Vehicle struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	Name         string          `gorm:"size:100;not null" json:"name" binding:"required"`
	LicensePlate string          `gorm:"size:50;not null" json:"license_plate" binding:"required"`
	CapacityKg   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"capacity_kg"`
	CapacityM3   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"capacity_m3"`
	WarehouseId  int             `gorm:"index;not null" json:"warehouse_id"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v Vehicle) GetId() int {
	return v.ID
}

func (v Vehicle) GetBusinessId() string {
	return v.BusinessId
}

func (v Vehicle) RemoveRedisKeys() error {
	if err := utils.RemoveRedis[Vehicle](v.ID); err != nil {
		return err
	}
	return utils.RemoveRedisList[Vehicle](v.BusinessId)
}

type NewVehicle struct {
	Name         string          `json:"name" binding:"required"`
	LicensePlate string          `json:"license_plate" binding:"required"`
	CapacityKg   decimal.Decimal `json:"capacity_kg"`
	CapacityM3   decimal.Decimal `json:"capacity_m3"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewVehicle) validate(ctx context.Context, businessId string, id int) error {
	if strings.TrimSpace(input.Name) == "" {
		return utils.NewValidationError("vehicle name is required")
	}
	if strings.TrimSpace(input.LicensePlate) == "" {
		return utils.NewValidationError("license plate is required")
	}
	if input.CapacityKg.IsNegative() || input.CapacityM3.IsNegative() {
		return utils.NewValidationError("vehicle capacity cannot be negative")
	}
	if err := utils.ValidateUnique[Vehicle](ctx, businessId, "license_plate", input.LicensePlate, id); err != nil {
		return err
	}
	return nil
}

func CreateVehicle(ctx context.Context, input *NewVehicle) (*Vehicle, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()

	// the mobile warehouse and the vehicle must exist together
	warehouse := Warehouse{
		BusinessId: businessId,
		Name:       "Vehicle " + input.LicensePlate,
		IsMobile:   utils.NewTrue(),
		IsActive:   utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&warehouse).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	vehicle := Vehicle{
		BusinessId:   businessId,
		Name:         input.Name,
		LicensePlate: input.LicensePlate,
		CapacityKg:   input.CapacityKg,
		CapacityM3:   input.CapacityM3,
		WarehouseId:  warehouse.ID,
		IsActive:     utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&vehicle).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Vehicle](businessId); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func UpdateVehicle(ctx context.Context, id int, input *NewVehicle) (*Vehicle, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	vehicle, err := utils.FetchModel[Vehicle](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&vehicle).Updates(map[string]interface{}{
		"Name":         input.Name,
		"LicensePlate": input.LicensePlate,
		"CapacityKg":   input.CapacityKg,
		"CapacityM3":   input.CapacityM3,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := vehicle.RemoveRedisKeys(); err != nil {
		return nil, err
	}
	return vehicle, nil
}

func DeleteVehicle(ctx context.Context, id int) (*Vehicle, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	vehicle, err := utils.FetchModel[Vehicle](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&StockLevel{}).
		Where("warehouse_id = ? AND (quantity > 0 OR reserved_qty > 0)", vehicle.WarehouseId).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewConflictError("vehicle still carries stock")
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(&vehicle).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("business_id = ? AND id = ?", businessId, vehicle.WarehouseId).
		Delete(&Warehouse{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := vehicle.RemoveRedisKeys(); err != nil {
		return nil, err
	}
	return vehicle, nil
}

func GetVehicle(ctx context.Context, id int) (*Vehicle, error) {
	return GetResource[Vehicle](ctx, id)
}

func ListVehicle(ctx context.Context) ([]*Vehicle, error) {
	return ListAllResource[Vehicle](ctx, "name")
}

func ToggleActiveVehicle(ctx context.Context, id int, isActive bool) (*Vehicle, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return ToggleActiveModel[Vehicle](ctx, businessId, id, isActive)
}
