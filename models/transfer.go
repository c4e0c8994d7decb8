package models

import (
	"context"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type NewTransfer struct {
	FromWarehouseId int                    `json:"from_warehouse_id" binding:"required"`
	ToWarehouseId   int                    `json:"to_warehouse_id" binding:"required"`
	Notes           string                 `json:"notes"`
	Lines           []NewStockDocumentLine `json:"lines" binding:"required"`
}

// InitiateTransfer creates, confirms and posts the outbound leg of a transfer
// in one transaction. On return the document is IN_TRANSIT: the source
// warehouse's on_hand is already decremented and the quantity parked in its
// in_transit bucket until receipt.
func InitiateTransfer(ctx context.Context, input *NewTransfer) (*StockDocument, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	docInput := NewStockDocument{
		DocType:         DocTypeTransfer,
		FromWarehouseId: input.FromWarehouseId,
		ToWarehouseId:   input.ToWarehouseId,
		Notes:           input.Notes,
		Lines:           input.Lines,
	}
	if err := docInput.validate(ctx, businessId); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	var created *StockDocument
	err := runWithBusinessPostingLock(ctx, db, businessId, func(tx *gorm.DB) error {
		docNo, err := nextDocumentNumber(ctx, tx, businessId, DocTypeTransfer)
		if err != nil {
			return err
		}

		doc := StockDocument{
			BusinessId:      businessId,
			DocNo:           docNo,
			DocType:         DocTypeTransfer,
			CurrentStatus:   DocStatusConfirmed,
			FromWarehouseId: input.FromWarehouseId,
			ToWarehouseId:   input.ToWarehouseId,
			Notes:           input.Notes,
			CreatedBy:       userId,
		}
		for _, line := range input.Lines {
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

		if err := PublishAuditEvent(ctx, tx, businessId, "stock_document", doc.ID,
			AuditActionCreate, AuditSeverityInfo, decimal.Zero, decimal.Zero); err != nil {
			return err
		}

		if err := postTransferOut(ctx, tx, &doc); err != nil {
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

// ReceiveTransfer completes the inbound leg.
func ReceiveTransfer(ctx context.Context, id int) (*StockDocument, error) {
	return ReceiveStockDocument(ctx, id)
}

// CancelInTransitTransfer aborts a transfer mid-flight, restoring the source
// warehouse from the document's own lines.
func CancelInTransitTransfer(ctx context.Context, id int, reason string) (*StockDocument, error) {
	doc, err := GetStockDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.DocType != DocTypeTransfer {
		return nil, utils.NewStateError("document %s is not a transfer", doc.DocNo)
	}
	if doc.CurrentStatus != DocStatusInTransit {
		return nil, utils.NewStateError("transfer %s is not in transit (status %s)", doc.DocNo, doc.CurrentStatus)
	}
	return CancelStockDocument(ctx, id, reason)
}
