package models

import (
	"context"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VehicleLoadInput struct {
	WarehouseId int                    `json:"warehouse_id" binding:"required"`
	Notes       string                 `json:"notes"`
	Lines       []NewStockDocumentLine `json:"lines" binding:"required"`
}

// lineWeightKg values a line by its variant's gross weight; variants without
// weight fields count as zero.
func lineWeightKg(variant *Variant, qty decimal.Decimal) decimal.Decimal {
	if variant.GrossWeightKg == nil {
		return decimal.Zero
	}
	return variant.GrossWeightKg.Mul(qty)
}

// truckStockWeightKg sums the current truck_stock weight and volume on a
// vehicle's mobile warehouse.
func truckStockLoad(ctx context.Context, tx *gorm.DB, businessId string, warehouseId int) (decimal.Decimal, decimal.Decimal, error) {
	var levels []StockLevel
	if err := tx.WithContext(ctx).
		Where("business_id = ? AND warehouse_id = ? AND stock_status = ? AND quantity > 0",
			businessId, warehouseId, StockStatusTruckStock).
		Find(&levels).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	weight, volume := decimal.Zero, decimal.Zero
	for _, level := range levels {
		variant, err := utils.FetchModel[Variant](ctx, businessId, level.VariantId)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		weight = weight.Add(lineWeightKg(variant, level.Quantity))
		volume = volume.Add(variant.VolumeM3.Mul(level.Quantity))
	}
	return weight, volume, nil
}

// checkVehicleCapacity verifies that the requested lines fit on top of the
// vehicle's current truck stock. Runs at posting time, inside applyPostingEffects.
func checkVehicleCapacity(ctx context.Context, tx *gorm.DB, businessId string, vehicle *Vehicle, lines []StockDocumentLine) error {
	if !config.EnforceVehicleCapacity() {
		return nil
	}
	if vehicle.CapacityKg.IsZero() && vehicle.CapacityM3.IsZero() {
		return nil
	}

	currentWeight, currentVolume, err := truckStockLoad(ctx, tx, businessId, vehicle.WarehouseId)
	if err != nil {
		return err
	}

	requestedWeight, requestedVolume := decimal.Zero, decimal.Zero
	for _, line := range lines {
		variant, err := utils.FetchModel[Variant](ctx, businessId, line.VariantId)
		if err != nil {
			return utils.NewNotFoundError("variant %d not found", line.VariantId)
		}
		requestedWeight = requestedWeight.Add(lineWeightKg(variant, line.Quantity))
		requestedVolume = requestedVolume.Add(variant.VolumeM3.Mul(line.Quantity))
	}

	if vehicle.CapacityKg.IsPositive() {
		if currentWeight.Add(requestedWeight).GreaterThan(vehicle.CapacityKg) {
			return utils.NewCapacityExceededError(vehicle.ID,
				requestedWeight.String(), vehicle.CapacityKg.Sub(currentWeight).String())
		}
	}
	if vehicle.CapacityM3.IsPositive() {
		if currentVolume.Add(requestedVolume).GreaterThan(vehicle.CapacityM3) {
			return utils.NewCapacityExceededError(vehicle.ID,
				requestedVolume.String(), vehicle.CapacityM3.Sub(currentVolume).String())
		}
	}
	return nil
}

// postVehicleDocument creates and posts a LOAD_MOB/UNLD_MOB document in one
// transaction. Capacity for loads is enforced by applyPostingEffects.
func postVehicleDocument(ctx context.Context, businessId string, docInput *NewStockDocument, vehicle *Vehicle) (*StockDocument, error) {

	if err := docInput.validate(ctx, businessId); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	var created *StockDocument
	err := runWithBusinessPostingLock(ctx, db, businessId, func(tx *gorm.DB) error {
		docNo, err := nextDocumentNumber(ctx, tx, businessId, docInput.DocType)
		if err != nil {
			return err
		}

		doc := StockDocument{
			BusinessId:      businessId,
			DocNo:           docNo,
			DocType:         docInput.DocType,
			CurrentStatus:   DocStatusConfirmed,
			FromWarehouseId: docInput.FromWarehouseId,
			ToWarehouseId:   docInput.ToWarehouseId,
			VehicleId:       vehicle.ID,
			Notes:           docInput.Notes,
			CreatedBy:       userId,
		}
		for _, line := range docInput.Lines {
			doc.Lines = append(doc.Lines, StockDocumentLine{
				VariantId:   line.VariantId,
				Quantity:    line.Quantity,
				UnitCost:    line.UnitCost,
				StockStatus: StockStatusOnHand,
			})
		}
		if err := tx.WithContext(ctx).Create(&doc).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return utils.NewConflictError("document number %s already taken, retry", docNo)
			}
			return err
		}

		if err := applyPostingEffects(ctx, tx, &doc); err != nil {
			return err
		}
		if err := setDocumentStatus(ctx, tx, &doc, DocStatusPosted); err != nil {
			return err
		}
		created = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// LoadVehicle moves warehouse on_hand stock into the vehicle's truck_stock
// bucket, guarded by the vehicle's declared capacity.
func LoadVehicle(ctx context.Context, vehicleId int, input *VehicleLoadInput) (*StockDocument, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	vehicle, err := utils.FetchModel[Vehicle](ctx, businessId, vehicleId)
	if err != nil {
		return nil, utils.NewNotFoundError("vehicle not found")
	}

	docInput := NewStockDocument{
		DocType:         DocTypeVehicleLoad,
		FromWarehouseId: input.WarehouseId,
		ToWarehouseId:   vehicle.WarehouseId,
		VehicleId:       vehicleId,
		Notes:           input.Notes,
		Lines:           input.Lines,
	}
	return postVehicleDocument(ctx, businessId, &docInput, vehicle)
}

// UnloadVehicle is the inverse of LoadVehicle. No capacity check: unloading
// only frees space.
func UnloadVehicle(ctx context.Context, vehicleId int, input *VehicleLoadInput) (*StockDocument, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	vehicle, err := utils.FetchModel[Vehicle](ctx, businessId, vehicleId)
	if err != nil {
		return nil, utils.NewNotFoundError("vehicle not found")
	}

	docInput := NewStockDocument{
		DocType:         DocTypeVehicleUnload,
		FromWarehouseId: vehicle.WarehouseId,
		ToWarehouseId:   input.WarehouseId,
		VehicleId:       vehicleId,
		Notes:           input.Notes,
		Lines:           input.Lines,
	}
	return postVehicleDocument(ctx, businessId, &docInput, vehicle)
}

type VehicleInventory struct {
	Vehicle       *Vehicle        `json:"vehicle"`
	Levels        []*StockLevel   `json:"levels"`
	TotalWeightKg decimal.Decimal `json:"total_weight_kg"`
	TotalVolumeM3 decimal.Decimal `json:"total_volume_m3"`
}

// GetVehicleInventory reports the truck stock currently on a vehicle.
func GetVehicleInventory(ctx context.Context, vehicleId int) (*VehicleInventory, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	vehicle, err := utils.FetchModel[Vehicle](ctx, businessId, vehicleId)
	if err != nil {
		return nil, utils.NewNotFoundError("vehicle not found")
	}

	status := StockStatusTruckStock
	levels, err := GetStockLevels(ctx, &StockLevelFilter{
		WarehouseId: vehicle.WarehouseId,
		StockStatus: &status,
	})
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	weight, volume, err := truckStockLoad(ctx, db, businessId, vehicle.WarehouseId)
	if err != nil {
		return nil, err
	}

	return &VehicleInventory{
		Vehicle:       vehicle,
		Levels:        levels,
		TotalWeightKg: weight,
		TotalVolumeM3: volume,
	}, nil
}
