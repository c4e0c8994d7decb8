package models

import (
	"context"
	"time"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockLevel is one ledger row, keyed by (warehouse, variant, stock_status).
// Quantity and ReservedQty are the only stored figures; available is always
// derived so the two can never drift apart.
type StockLevel struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;not null;uniqueIndex:idx_ledger_key" json:"business_id"`
	WarehouseId       int             `gorm:"not null;uniqueIndex:idx_ledger_key" json:"warehouse_id"`
	VariantId         int             `gorm:"not null;uniqueIndex:idx_ledger_key" json:"variant_id"`
	StockStatus       StockStatus     `gorm:"type:enum('on_hand','in_transit','truck_stock','quarantine');not null;uniqueIndex:idx_ledger_key" json:"stock_status"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	ReservedQty       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reserved_qty"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	LastTransactionAt *time.Time      `json:"last_transaction_at"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	AvailableQty decimal.Decimal `gorm:"-" json:"available_qty"`
}

func (s StockLevel) GetId() int {
	return s.ID
}

func (s StockLevel) GetBusinessId() string {
	return s.BusinessId
}

func (s *StockLevel) AfterFind(tx *gorm.DB) error {
	s.AvailableQty = s.Quantity.Sub(s.ReservedQty)
	return nil
}

// StockMovement records every quantity change with its attribution, so each
// ledger row can be replayed back to zero.
type StockMovement struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"index;not null" json:"business_id"`
	WarehouseId int             `gorm:"index;not null" json:"warehouse_id"`
	VariantId   int             `gorm:"index;not null" json:"variant_id"`
	StockStatus StockStatus     `gorm:"type:enum('on_hand','in_transit','truck_stock','quarantine');not null" json:"stock_status"`
	Delta       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"delta"`
	QtyAfter    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty_after"`
	RefType     string          `gorm:"size:50;not null" json:"ref_type"`
	RefId       int             `gorm:"index" json:"ref_id"`
	Reason      string          `gorm:"size:255" json:"reason"`
	CreatedBy   int             `json:"created_by"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// movement attributions
const (
	MovementRefDocument       = "stock_document"
	MovementRefReconciliation = "reconciliation"
	MovementRefManual         = "manual"
)

// firstOrCreateStockLevel locks the ledger row FOR UPDATE, creating it when
// missing. Every mutation of a key goes through this lock, which is what
// serializes concurrent callers.
func firstOrCreateStockLevel(tx *gorm.DB, businessId string, warehouseId int, variantId int, status StockStatus) (*StockLevel, error) {
	stockLevel := StockLevel{
		BusinessId:  businessId,
		WarehouseId: warehouseId,
		VariantId:   variantId,
		StockStatus: status,
	}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND warehouse_id = ? AND variant_id = ? AND stock_status = ?",
			businessId, warehouseId, variantId, status).
		FirstOrCreate(&stockLevel)
	if result.Error != nil {
		if isDuplicateKeyErr(result.Error) {
			// Lost a first-touch race on idx_ledger_key; the key exists now,
			// so the caller can simply retry.
			return nil, utils.NewConflictError("stock level was created concurrently, retry")
		}
		return nil, result.Error
	}
	return &stockLevel, nil
}

// adjustStockLevel is the only primitive that changes Quantity. Runs inside
// the caller's transaction; the caller commits or rolls back.
func adjustStockLevel(ctx context.Context, tx *gorm.DB, businessId string, warehouseId int, variantId int, status StockStatus, delta decimal.Decimal, unitCost *decimal.Decimal, refType string, refId int, reason string) error {

	if delta.IsZero() {
		return nil
	}
	if !status.Valid() {
		return utils.NewValidationError("invalid stock status")
	}

	stockLevel, err := firstOrCreateStockLevel(tx, businessId, warehouseId, variantId, status)
	if err != nil {
		return err
	}

	newQty := stockLevel.Quantity.Add(delta)
	if newQty.IsNegative() {
		return utils.NewInvariantError(warehouseId, variantId, string(status),
			"adjustment of %s would drive quantity below zero (current %s)", delta, stockLevel.Quantity)
	}
	if stockLevel.ReservedQty.GreaterThan(newQty) {
		return utils.NewInvariantError(warehouseId, variantId, string(status),
			"adjustment of %s would leave reserved %s above quantity %s", delta, stockLevel.ReservedQty, newQty)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"Quantity":          newQty,
		"LastTransactionAt": &now,
	}
	if unitCost != nil {
		updates["UnitCost"] = *unitCost
	}
	if err := tx.WithContext(ctx).Model(&StockLevel{}).
		Where("id = ?", stockLevel.ID).Updates(updates).Error; err != nil {
		return err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	movement := StockMovement{
		BusinessId:  businessId,
		WarehouseId: warehouseId,
		VariantId:   variantId,
		StockStatus: status,
		Delta:       delta,
		QtyAfter:    newQty,
		RefType:     refType,
		RefId:       refId,
		Reason:      reason,
		CreatedBy:   userId,
	}
	if err := tx.WithContext(ctx).Create(&movement).Error; err != nil {
		return err
	}

	return PublishAuditEvent(ctx, tx, businessId, "stock_level", stockLevel.ID,
		AuditActionLedgerAdjust, AuditSeverityInfo, stockLevel.Quantity, newQty)
}

type StockAdjustmentInput struct {
	WarehouseId int              `json:"warehouse_id" binding:"required"`
	VariantId   int              `json:"variant_id" binding:"required"`
	StockStatus StockStatus      `json:"stock_status" binding:"required"`
	Delta       decimal.Decimal  `json:"delta" binding:"required"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
	Reason      string           `json:"reason" binding:"required"`
}

// AdjustStockLevel is the manual adjustment entry point. Documents do not go
// through here; they post their own lines.
func AdjustStockLevel(ctx context.Context, input *StockAdjustmentInput) (*StockLevel, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if input.Reason == "" {
		return nil, utils.NewValidationError("reason is required")
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, businessId, input.WarehouseId); err != nil {
		return nil, utils.NewNotFoundError("warehouse not found")
	}
	if err := utils.ValidateResourceId[Variant](ctx, businessId, input.VariantId); err != nil {
		return nil, utils.NewNotFoundError("variant not found")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	if err := adjustStockLevel(ctx, tx, businessId, input.WarehouseId, input.VariantId,
		input.StockStatus, input.Delta, input.UnitCost, MovementRefManual, 0, input.Reason); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetStockLevel(ctx, input.WarehouseId, input.VariantId, input.StockStatus)
}

// SetUnitCost revalues a ledger row without touching quantity.
func SetUnitCost(ctx context.Context, warehouseId int, variantId int, status StockStatus, unitCost decimal.Decimal) (*StockLevel, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if unitCost.IsNegative() {
		return nil, utils.NewValidationError("unit cost cannot be negative")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	stockLevel, err := firstOrCreateStockLevel(tx, businessId, warehouseId, variantId, status)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Model(&StockLevel{}).
		Where("id = ?", stockLevel.ID).UpdateColumn("UnitCost", unitCost).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return GetStockLevel(ctx, warehouseId, variantId, status)
}

func GetStockLevel(ctx context.Context, warehouseId int, variantId int, status StockStatus) (*StockLevel, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	db := config.GetDB()
	var stockLevel StockLevel
	err := db.WithContext(ctx).
		Where("business_id = ? AND warehouse_id = ? AND variant_id = ? AND stock_status = ?",
			businessId, warehouseId, variantId, status).
		First(&stockLevel).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// an absent row reads as zero
			return &StockLevel{
				BusinessId:  businessId,
				WarehouseId: warehouseId,
				VariantId:   variantId,
				StockStatus: status,
			}, nil
		}
		return nil, err
	}
	return &stockLevel, nil
}

type StockLevelFilter struct {
	WarehouseId      int          `form:"warehouse_id"`
	VariantId        int          `form:"variant_id"`
	StockStatus      *StockStatus `form:"stock_status"`
	MinQuantity      *string      `form:"min_quantity"`
	IncludeZeroStock bool         `form:"include_zero_stock"`
}

func GetStockLevels(ctx context.Context, filter *StockLevelFilter) ([]*StockLevel, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter != nil {
		if filter.WarehouseId > 0 {
			dbCtx = dbCtx.Where("warehouse_id = ?", filter.WarehouseId)
		}
		if filter.VariantId > 0 {
			dbCtx = dbCtx.Where("variant_id = ?", filter.VariantId)
		}
		if filter.StockStatus != nil {
			dbCtx = dbCtx.Where("stock_status = ?", *filter.StockStatus)
		}
		if filter.MinQuantity != nil && *filter.MinQuantity != "" {
			minQty, err := decimal.NewFromString(*filter.MinQuantity)
			if err != nil {
				return nil, utils.NewValidationError("invalid min_quantity")
			}
			dbCtx = dbCtx.Where("quantity >= ?", minQty)
		}
		if !filter.IncludeZeroStock {
			dbCtx = dbCtx.Where("quantity > 0 OR reserved_qty > 0")
		}
	}

	var results []*StockLevel
	if err := dbCtx.Order("warehouse_id, variant_id, stock_status").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListStockMovements returns the movement history for one ledger key, newest
// first.
func ListStockMovements(ctx context.Context, warehouseId int, variantId int, limit int) ([]*StockMovement, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if warehouseId > 0 {
		dbCtx = dbCtx.Where("warehouse_id = ?", warehouseId)
	}
	if variantId > 0 {
		dbCtx = dbCtx.Where("variant_id = ?", variantId)
	}

	var results []*StockMovement
	if err := dbCtx.Order("id DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
