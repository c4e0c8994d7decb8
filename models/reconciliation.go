package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PhysicalCountInput struct {
	WarehouseId int             `json:"warehouse_id" binding:"required"`
	VariantId   int             `json:"variant_id" binding:"required"`
	StockStatus StockStatus     `json:"stock_status" binding:"required"`
	CountedQty  decimal.Decimal `json:"counted_qty"`
}

type ReconcileResult struct {
	Variance decimal.Decimal `json:"variance"`
	// nil when the count matched the ledger
	Document *StockDocument `json:"document"`
}

// ReconcilePhysicalCount compares a counted quantity against the ledger and
// posts the correcting document immediately. Counts are asserted fact, so the
// variance document bypasses CONFIRMED: a positive variance posts a receipt,
// a negative one an issue.
//
// A Redis lock fences concurrent counts of the same key; losing the race is a
// ConflictError the caller retries after re-counting. When Redis is down the
// row lock alone still keeps the adjustment correct.
func ReconcilePhysicalCount(ctx context.Context, input *PhysicalCountInput) (*ReconcileResult, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if !input.StockStatus.Valid() {
		return nil, utils.NewValidationError("invalid stock status")
	}
	if input.CountedQty.IsNegative() {
		return nil, utils.NewValidationError("counted quantity cannot be negative")
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, businessId, input.WarehouseId); err != nil {
		return nil, utils.NewNotFoundError("warehouse not found")
	}
	if err := utils.ValidateResourceId[Variant](ctx, businessId, input.VariantId); err != nil {
		return nil, utils.NewNotFoundError("variant not found")
	}

	if locker := config.GetRedisLock(); locker != nil {
		lockKey := fmt.Sprintf("reconcile:%s:%d:%d:%s", businessId, input.WarehouseId, input.VariantId, input.StockStatus)
		lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
		if err == redislock.ErrNotObtained {
			return nil, utils.NewConflictError("another count for this stock is in progress")
		}
		if err == nil {
			defer lock.Release(ctx)
		}
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	var result *ReconcileResult
	err := runWithBusinessPostingLock(ctx, db, businessId, func(tx *gorm.DB) error {
		stockLevel, err := firstOrCreateStockLevel(tx, businessId, input.WarehouseId, input.VariantId, input.StockStatus)
		if err != nil {
			return err
		}

		variance := input.CountedQty.Sub(stockLevel.Quantity)
		if variance.IsZero() {
			result = &ReconcileResult{Variance: decimal.Zero}
			return nil
		}

		docType := DocTypeReceipt
		fromWarehouseId, toWarehouseId := 0, input.WarehouseId
		if variance.IsNegative() {
			docType = DocTypeIssue
			fromWarehouseId, toWarehouseId = input.WarehouseId, 0
		}

		docNo, err := nextDocumentNumber(ctx, tx, businessId, docType)
		if err != nil {
			return err
		}

		now := time.Now()
		doc := StockDocument{
			BusinessId:      businessId,
			DocNo:           docNo,
			DocType:         docType,
			CurrentStatus:   DocStatusPosted,
			FromWarehouseId: fromWarehouseId,
			ToWarehouseId:   toWarehouseId,
			Notes:           fmt.Sprintf("physical count: recorded %s, counted %s", stockLevel.Quantity, input.CountedQty),
			CreatedBy:       userId,
			PostedAt:        &now,
			Lines: []StockDocumentLine{{
				VariantId:   input.VariantId,
				Quantity:    variance.Abs(),
				StockStatus: input.StockStatus,
			}},
		}
		if err := tx.WithContext(ctx).Create(&doc).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return utils.NewConflictError("document number %s already taken, retry", docNo)
			}
			return err
		}

		if err := adjustStockLevel(ctx, tx, businessId, input.WarehouseId, input.VariantId,
			input.StockStatus, variance, nil, MovementRefReconciliation, doc.ID, doc.DocNo); err != nil {
			return err
		}

		// flag counts that move the figure by more than a tenth
		severity := AuditSeverityInfo
		if stockLevel.Quantity.IsZero() ||
			variance.Abs().GreaterThan(stockLevel.Quantity.Div(decimal.NewFromInt(10))) {
			severity = AuditSeverityWarning
		}
		if err := PublishAuditEvent(ctx, tx, businessId, "stock_document", doc.ID,
			AuditActionDocStatus, severity, stockLevel.Quantity, input.CountedQty); err != nil {
			return err
		}

		result = &ReconcileResult{Variance: variance, Document: &doc}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
