package models

import (
	"context"
	"time"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
	"github.com/shopspring/decimal"
)

// Reservation rows are a trace of reserve/release deltas per owner. The
// authoritative figure is always StockLevel.ReservedQty; these rows exist so a
// claim can be traced back to the order or trip that made it.
type Reservation struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"index;not null" json:"business_id"`
	WarehouseId int             `gorm:"index;not null" json:"warehouse_id"`
	VariantId   int             `gorm:"index;not null" json:"variant_id"`
	StockStatus StockStatus     `gorm:"type:enum('on_hand','in_transit','truck_stock','quarantine');not null" json:"stock_status"`
	Delta       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"delta"`
	OwnerRef    string          `gorm:"size:100;index;not null" json:"owner_ref"`
	CreatedBy   int             `json:"created_by"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type ReservationInput struct {
	WarehouseId int             `json:"warehouse_id" binding:"required"`
	VariantId   int             `json:"variant_id" binding:"required"`
	StockStatus StockStatus     `json:"stock_status" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	OwnerRef    string          `json:"owner_ref" binding:"required"`
}

type ReservationResult struct {
	WarehouseId        int             `json:"warehouse_id"`
	VariantId          int             `json:"variant_id"`
	StockStatus        StockStatus     `json:"stock_status"`
	ReservedQty        decimal.Decimal `json:"reserved_qty"`
	RemainingAvailable decimal.Decimal `json:"remaining_available"`
}

func (input *ReservationInput) validate() error {
	if !input.StockStatus.Valid() {
		return utils.NewValidationError("invalid stock status")
	}
	if !input.Quantity.IsPositive() {
		return utils.NewValidationError("quantity must be positive")
	}
	if input.OwnerRef == "" {
		return utils.NewValidationError("owner_ref is required")
	}
	return nil
}

// Reserve carves quantity out of availability. The check and the increment
// run under the same row lock, so two competing reservations can never both
// fit into the same availability window.
func Reserve(ctx context.Context, input *ReservationInput) (*ReservationResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	stockLevel, err := firstOrCreateStockLevel(tx, businessId, input.WarehouseId, input.VariantId, input.StockStatus)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	available := stockLevel.Quantity.Sub(stockLevel.ReservedQty)
	if input.Quantity.GreaterThan(available) {
		tx.Rollback()
		return nil, utils.NewInsufficientStockError(input.WarehouseId, input.VariantId,
			string(input.StockStatus), input.Quantity.String(), available.String())
	}

	newReserved := stockLevel.ReservedQty.Add(input.Quantity)
	if err := tx.WithContext(ctx).Model(&StockLevel{}).
		Where("id = ?", stockLevel.ID).UpdateColumn("ReservedQty", newReserved).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	record := Reservation{
		BusinessId:  businessId,
		WarehouseId: input.WarehouseId,
		VariantId:   input.VariantId,
		StockStatus: input.StockStatus,
		Delta:       input.Quantity,
		OwnerRef:    input.OwnerRef,
		CreatedBy:   userId,
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := PublishAuditEvent(ctx, tx, businessId, "stock_level", stockLevel.ID,
		AuditActionReserve, AuditSeverityInfo, stockLevel.ReservedQty, newReserved); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &ReservationResult{
		WarehouseId:        input.WarehouseId,
		VariantId:          input.VariantId,
		StockStatus:        input.StockStatus,
		ReservedQty:        newReserved,
		RemainingAvailable: stockLevel.Quantity.Sub(newReserved),
	}, nil
}

// Release is the exact inverse of Reserve.
func Release(ctx context.Context, input *ReservationInput) (*ReservationResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	stockLevel, err := firstOrCreateStockLevel(tx, businessId, input.WarehouseId, input.VariantId, input.StockStatus)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	newReserved := stockLevel.ReservedQty.Sub(input.Quantity)
	if newReserved.IsNegative() {
		tx.Rollback()
		return nil, utils.NewInvariantError(input.WarehouseId, input.VariantId, string(input.StockStatus),
			"release of %s would drive reserved below zero (current %s)", input.Quantity, stockLevel.ReservedQty)
	}

	if err := tx.WithContext(ctx).Model(&StockLevel{}).
		Where("id = ?", stockLevel.ID).UpdateColumn("ReservedQty", newReserved).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	record := Reservation{
		BusinessId:  businessId,
		WarehouseId: input.WarehouseId,
		VariantId:   input.VariantId,
		StockStatus: input.StockStatus,
		Delta:       input.Quantity.Neg(),
		OwnerRef:    input.OwnerRef,
		CreatedBy:   userId,
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := PublishAuditEvent(ctx, tx, businessId, "stock_level", stockLevel.ID,
		AuditActionRelease, AuditSeverityInfo, stockLevel.ReservedQty, newReserved); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &ReservationResult{
		WarehouseId:        input.WarehouseId,
		VariantId:          input.VariantId,
		StockStatus:        input.StockStatus,
		ReservedQty:        newReserved,
		RemainingAvailable: stockLevel.Quantity.Sub(newReserved),
	}, nil
}

// ListReservations returns the reserve/release trace for an owner.
func ListReservations(ctx context.Context, ownerRef string) ([]*Reservation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if ownerRef != "" {
		dbCtx = dbCtx.Where("owner_ref = ?", ownerRef)
	}

	var results []*Reservation
	if err := dbCtx.Order("id DESC").Limit(500).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
