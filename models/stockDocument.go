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

// StockDocument is the unit of atomic ledger mutation. Every quantity change
// except reserve/release is backed by exactly one posted document.
type StockDocument struct {
	ID              int        `gorm:"primary_key" json:"id"`
	BusinessId      string     `gorm:"index;not null;uniqueIndex:idx_doc_no" json:"business_id"`
	DocNo           string     `gorm:"size:50;not null;uniqueIndex:idx_doc_no" json:"doc_no"`
	DocType         DocType    `gorm:"type:enum('REC_FIL','ISS_FIL','XFER','CONV_FIL','LOAD_MOB','UNLD_MOB');not null" json:"doc_type"`
	CurrentStatus   DocStatus  `gorm:"type:enum('DRAFT','CONFIRMED','POSTED','CANCELLED','IN_TRANSIT','RECEIVED');not null;default:'DRAFT'" json:"current_status"`
	FromWarehouseId int        `gorm:"index" json:"from_warehouse_id"`
	ToWarehouseId   int        `gorm:"index" json:"to_warehouse_id"`
	VehicleId       int        `gorm:"index" json:"vehicle_id"`
	Notes           string     `gorm:"type:text" json:"notes"`
	CancelReason    string     `gorm:"size:255" json:"cancel_reason"`
	CreatedBy       int        `json:"created_by"`
	PostedAt        *time.Time `json:"posted_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Lines []StockDocumentLine `gorm:"foreignKey:StockDocumentId" json:"lines"`
}

func (d StockDocument) GetId() int {
	return d.ID
}

func (d StockDocument) GetBusinessId() string {
	return d.BusinessId
}

func (d StockDocument) GetCursor() string {
	return d.CreatedAt.Format("2006-01-02 15:04:05.000")
}

type StockDocumentLine struct {
	ID              int              `gorm:"primary_key" json:"id"`
	StockDocumentId int              `gorm:"index;not null" json:"stock_document_id"`
	VariantId       int              `gorm:"index;not null" json:"variant_id"`
	Quantity        decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitCost        *decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_cost"`
	// the bucket the line targets; defaults to on_hand, reconciliation may
	// point it at quarantine
	StockStatus StockStatus `gorm:"type:enum('on_hand','in_transit','truck_stock','quarantine');not null;default:'on_hand'" json:"stock_status"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (l StockDocumentLine) GetReferenceId() int {
	return l.StockDocumentId
}

type StockDocumentsEdge Edge[StockDocument]
type StockDocumentsConnection struct {
	Edges    []*StockDocumentsEdge `json:"edges"`
	PageInfo *PageInfo             `json:"pageInfo"`
}

type NewStockDocumentLine struct {
	VariantId   int              `json:"variant_id" binding:"required"`
	Quantity    decimal.Decimal  `json:"quantity" binding:"required"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
	StockStatus StockStatus      `json:"stock_status"`
}

type NewStockDocument struct {
	DocType         DocType                `json:"doc_type" binding:"required"`
	FromWarehouseId int                    `json:"from_warehouse_id"`
	ToWarehouseId   int                    `json:"to_warehouse_id"`
	VehicleId       int                    `json:"vehicle_id"`
	Notes           string                 `json:"notes"`
	Lines           []NewStockDocumentLine `json:"lines" binding:"required"`
}

func (input *NewStockDocument) validate(ctx context.Context, businessId string) error {
	if !input.DocType.Valid() {
		return utils.NewValidationError("invalid doc type")
	}
	if len(input.Lines) == 0 {
		return utils.NewValidationError("document requires at least one line")
	}

	switch input.DocType {
	case DocTypeReceipt:
		if input.ToWarehouseId == 0 {
			return utils.NewValidationError("to_warehouse_id is required for receipts")
		}
	case DocTypeIssue:
		if input.FromWarehouseId == 0 {
			return utils.NewValidationError("from_warehouse_id is required for issues")
		}
	case DocTypeTransfer:
		if input.FromWarehouseId == 0 || input.ToWarehouseId == 0 {
			return utils.NewValidationError("transfer requires both warehouses")
		}
		if input.FromWarehouseId == input.ToWarehouseId {
			return utils.NewValidationError("transfer warehouses must differ")
		}
	case DocTypeConversion:
		if input.FromWarehouseId == 0 {
			return utils.NewValidationError("from_warehouse_id is required for conversions")
		}
		if len(input.Lines)%2 != 0 {
			return utils.NewValidationError("conversion lines must come in source/target pairs")
		}
	case DocTypeVehicleLoad:
		if input.FromWarehouseId == 0 {
			return utils.NewValidationError("from_warehouse_id is required for vehicle loads")
		}
		if input.VehicleId == 0 {
			return utils.NewValidationError("vehicle_id is required for vehicle loads")
		}
	case DocTypeVehicleUnload:
		if input.ToWarehouseId == 0 {
			return utils.NewValidationError("to_warehouse_id is required for vehicle unloads")
		}
		if input.VehicleId == 0 {
			return utils.NewValidationError("vehicle_id is required for vehicle unloads")
		}
	}

	if input.FromWarehouseId > 0 {
		if err := utils.ValidateResourceId[Warehouse](ctx, businessId, input.FromWarehouseId); err != nil {
			return utils.NewNotFoundError("from warehouse not found")
		}
	}
	if input.ToWarehouseId > 0 {
		if err := utils.ValidateResourceId[Warehouse](ctx, businessId, input.ToWarehouseId); err != nil {
			return utils.NewNotFoundError("to warehouse not found")
		}
	}

	for _, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			return utils.NewValidationError("line quantity must be positive")
		}
		if line.UnitCost != nil && line.UnitCost.IsNegative() {
			return utils.NewValidationError("unit cost cannot be negative")
		}
		if line.StockStatus != "" && !line.StockStatus.Valid() {
			return utils.NewValidationError("invalid line stock status")
		}
		if err := utils.ValidateResourceId[Variant](ctx, businessId, line.VariantId); err != nil {
			return utils.NewNotFoundError("variant %d not found", line.VariantId)
		}
	}

	if input.DocType == DocTypeConversion {
		return validateConversionPairs(ctx, businessId, input.Lines)
	}
	return nil
}

// validateConversionPairs enforces the pairing rule for CONV_FIL: consecutive
// (source, target) lines at matching quantities, both asset variants of the
// same product and size, mapping one fill state to the other.
func validateConversionPairs(ctx context.Context, businessId string, lines []NewStockDocumentLine) error {
	for i := 0; i < len(lines); i += 2 {
		src, dst := lines[i], lines[i+1]
		if !src.Quantity.Equal(dst.Quantity) {
			return utils.NewValidationError("conversion pair quantities must match")
		}
		srcVariant, err := utils.FetchModel[Variant](ctx, businessId, src.VariantId)
		if err != nil {
			return utils.NewNotFoundError("variant %d not found", src.VariantId)
		}
		dstVariant, err := utils.FetchModel[Variant](ctx, businessId, dst.VariantId)
		if err != nil {
			return utils.NewNotFoundError("variant %d not found", dst.VariantId)
		}
		if srcVariant.SkuType != SkuTypeAsset || dstVariant.SkuType != SkuTypeAsset {
			return utils.NewValidationError("conversion lines must reference asset variants")
		}
		if srcVariant.ProductId != dstVariant.ProductId || srcVariant.Size != dstVariant.Size {
			return utils.NewValidationError("conversion pair must share product and size")
		}
		if srcVariant.StateAttr == dstVariant.StateAttr {
			return utils.NewValidationError("conversion pair must map EMPTY to FULL or the inverse")
		}
	}
	return nil
}

// resolveVehicleWarehouses fills in the vehicle's mobile warehouse for
// LOAD_MOB/UNLD_MOB so the posting effects work on plain ledger keys.
func (input *NewStockDocument) resolveVehicleWarehouses(ctx context.Context, businessId string) error {
	if input.VehicleId == 0 {
		return nil
	}
	vehicle, err := utils.FetchModel[Vehicle](ctx, businessId, input.VehicleId)
	if err != nil {
		return utils.NewNotFoundError("vehicle not found")
	}
	switch input.DocType {
	case DocTypeVehicleLoad:
		input.ToWarehouseId = vehicle.WarehouseId
	case DocTypeVehicleUnload:
		input.FromWarehouseId = vehicle.WarehouseId
	}
	return nil
}

func CreateStockDocument(ctx context.Context, input *NewStockDocument) (*StockDocument, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}
	if err := input.resolveVehicleWarehouses(ctx, businessId); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	docNo, err := nextDocumentNumber(ctx, tx, businessId, input.DocType)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	doc := StockDocument{
		BusinessId:      businessId,
		DocNo:           docNo,
		DocType:         input.DocType,
		CurrentStatus:   DocStatusDraft,
		FromWarehouseId: input.FromWarehouseId,
		ToWarehouseId:   input.ToWarehouseId,
		VehicleId:       input.VehicleId,
		Notes:           input.Notes,
		CreatedBy:       userId,
	}
	for _, line := range input.Lines {
		status := line.StockStatus
		if status == "" {
			status = StockStatusOnHand
		}
		doc.Lines = append(doc.Lines, StockDocumentLine{
			VariantId:   line.VariantId,
			Quantity:    line.Quantity,
			UnitCost:    line.UnitCost,
			StockStatus: status,
		})
	}

	if err := tx.WithContext(ctx).Create(&doc).Error; err != nil {
		tx.Rollback()
		if isDuplicateKeyErr(err) {
			// Number series collision (e.g. after a Redis counter reset).
			return nil, utils.NewConflictError("document number %s already taken, retry", docNo)
		}
		return nil, err
	}

	if err := PublishAuditEvent(ctx, tx, businessId, "stock_document", doc.ID,
		AuditActionCreate, AuditSeverityInfo, decimal.Zero, decimal.Zero); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateStockDocument replaces a draft's header and lines. Confirmed and
// later documents are immutable.
func UpdateStockDocument(ctx context.Context, id int, input *NewStockDocument) (*StockDocument, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}
	if err := input.resolveVehicleWarehouses(ctx, businessId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	doc, err := lockStockDocument(ctx, tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if doc.CurrentStatus != DocStatusDraft {
		tx.Rollback()
		return nil, utils.NewStateError("only draft documents can be edited (status %s)", doc.CurrentStatus)
	}
	if doc.DocType != input.DocType {
		tx.Rollback()
		return nil, utils.NewValidationError("doc type cannot be changed")
	}

	if err := tx.WithContext(ctx).Where("stock_document_id = ?", doc.ID).
		Delete(&StockDocumentLine{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.WithContext(ctx).Model(&doc).Updates(map[string]interface{}{
		"FromWarehouseId": input.FromWarehouseId,
		"ToWarehouseId":   input.ToWarehouseId,
		"VehicleId":       input.VehicleId,
		"Notes":           input.Notes,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, line := range input.Lines {
		status := line.StockStatus
		if status == "" {
			status = StockStatusOnHand
		}
		newLine := StockDocumentLine{
			StockDocumentId: doc.ID,
			VariantId:       line.VariantId,
			Quantity:        line.Quantity,
			UnitCost:        line.UnitCost,
			StockStatus:     status,
		}
		if err := tx.WithContext(ctx).Create(&newLine).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := PublishAuditEvent(ctx, tx, businessId, "stock_document", doc.ID,
		AuditActionUpdate, AuditSeverityInfo, decimal.Zero, decimal.Zero); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetStockDocument(ctx, id)
}

// lockStockDocument fetches the document with its lines under FOR UPDATE, so
// a status transition can never race another one.
func lockStockDocument(ctx context.Context, tx *gorm.DB, businessId string, id int) (*StockDocument, error) {
	var doc StockDocument
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("stock document %d not found", id)
		}
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("stock_document_id = ?", doc.ID).
		Order("id").Find(&doc.Lines).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func setDocumentStatus(ctx context.Context, tx *gorm.DB, doc *StockDocument, to DocStatus) error {
	if !CanTransition(doc.DocType, doc.CurrentStatus, to) {
		return utils.NewStateError("illegal transition %s -> %s for %s", doc.CurrentStatus, to, doc.DocType)
	}

	updates := map[string]interface{}{"CurrentStatus": to}
	if to == DocStatusPosted || to == DocStatusReceived {
		now := time.Now()
		updates["PostedAt"] = &now
	}
	if err := tx.WithContext(ctx).Model(&StockDocument{}).
		Where("id = ?", doc.ID).Updates(updates).Error; err != nil {
		return err
	}
	doc.CurrentStatus = to

	return PublishAuditEvent(ctx, tx, doc.BusinessId, "stock_document", doc.ID,
		AuditActionDocStatus, AuditSeverityInfo, decimal.Zero, decimal.Zero)
}

// ConfirmStockDocument locks the line set. No ledger effect.
func ConfirmStockDocument(ctx context.Context, id int) (*StockDocument, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	doc, err := lockStockDocument(ctx, tx, businessId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := setDocumentStatus(ctx, tx, doc, DocStatusConfirmed); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return doc, nil
}

// applyPostingEffects runs the per-type ledger mutations for one document.
// Called with the document row already locked; any line failure aborts the
// whole transaction so the ledger is never partially touched.
func applyPostingEffects(ctx context.Context, tx *gorm.DB, doc *StockDocument) error {
	switch doc.DocType {
	case DocTypeReceipt:
		for _, line := range doc.Lines {
			if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.ToWarehouseId, line.VariantId,
				line.StockStatus, line.Quantity, line.UnitCost, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
				return err
			}
		}
	case DocTypeIssue:
		for _, line := range doc.Lines {
			if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.FromWarehouseId, line.VariantId,
				line.StockStatus, line.Quantity.Neg(), nil, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
				return err
			}
		}
	case DocTypeConversion:
		for i := 0; i < len(doc.Lines); i += 2 {
			src, dst := doc.Lines[i], doc.Lines[i+1]
			if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.FromWarehouseId, src.VariantId,
				StockStatusOnHand, src.Quantity.Neg(), nil, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
				return err
			}
			if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.FromWarehouseId, dst.VariantId,
				StockStatusOnHand, dst.Quantity, dst.UnitCost, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
				return err
			}
		}
	case DocTypeVehicleLoad:
		// Capacity is checked here so every posting path enforces it,
		// including generic documents that were drafted first.
		vehicle, err := utils.FetchModel[Vehicle](ctx, doc.BusinessId, doc.VehicleId)
		if err != nil {
			return utils.NewNotFoundError("vehicle %d not found", doc.VehicleId)
		}
		if err := checkVehicleCapacity(ctx, tx, doc.BusinessId, vehicle, doc.Lines); err != nil {
			return err
		}
		for _, line := range doc.Lines {
			if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.FromWarehouseId, line.VariantId,
				StockStatusOnHand, line.Quantity.Neg(), nil, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
				return err
			}
			if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.ToWarehouseId, line.VariantId,
				StockStatusTruckStock, line.Quantity, line.UnitCost, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
				return err
			}
		}
	case DocTypeVehicleUnload:
		for _, line := range doc.Lines {
			if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.FromWarehouseId, line.VariantId,
				StockStatusTruckStock, line.Quantity.Neg(), nil, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
				return err
			}
			if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.ToWarehouseId, line.VariantId,
				StockStatusOnHand, line.Quantity, line.UnitCost, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
				return err
			}
		}
	case DocTypeTransfer:
		// transfers post leg by leg, see postTransferOut / receiveTransferIn
		return utils.NewStateError("transfer documents post through their transit legs")
	}
	return nil
}

// PostStockDocument applies a confirmed document to the ledger exactly once.
// For transfers this runs the outbound leg and parks the document IN_TRANSIT.
func PostStockDocument(ctx context.Context, id int) (*StockDocument, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	db := config.GetDB()
	var doc *StockDocument
	err := runWithBusinessPostingLock(ctx, db, businessId, func(tx *gorm.DB) error {
		d, err := lockStockDocument(ctx, tx, businessId, id)
		if err != nil {
			return err
		}
		if d.CurrentStatus != DocStatusConfirmed {
			return utils.NewStateError("only confirmed documents can be posted (status %s)", d.CurrentStatus)
		}

		if d.DocType == DocTypeTransfer {
			if err := postTransferOut(ctx, tx, d); err != nil {
				return err
			}
		} else {
			if err := applyPostingEffects(ctx, tx, d); err != nil {
				return err
			}
			if err := setDocumentStatus(ctx, tx, d, DocStatusPosted); err != nil {
				return err
			}
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// postTransferOut runs the outbound transfer leg: source decremented, stock
// parked in the source warehouse's in_transit bucket until receipt.
func postTransferOut(ctx context.Context, tx *gorm.DB, doc *StockDocument) error {
	for _, line := range doc.Lines {
		if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.FromWarehouseId, line.VariantId,
			StockStatusOnHand, line.Quantity.Neg(), nil, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
			return err
		}
		if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.FromWarehouseId, line.VariantId,
			StockStatusInTransit, line.Quantity, line.UnitCost, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
			return err
		}
	}
	return setDocumentStatus(ctx, tx, doc, DocStatusInTransit)
}

// receiveTransferIn completes a transfer: the in_transit parking is drained
// and the destination's on_hand incremented, line for line.
func receiveTransferIn(ctx context.Context, tx *gorm.DB, doc *StockDocument) error {
	for _, line := range doc.Lines {
		if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.FromWarehouseId, line.VariantId,
			StockStatusInTransit, line.Quantity.Neg(), nil, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
			return err
		}
		if err := adjustStockLevel(ctx, tx, doc.BusinessId, doc.ToWarehouseId, line.VariantId,
			StockStatusOnHand, line.Quantity, line.UnitCost, MovementRefDocument, doc.ID, doc.DocNo); err != nil {
			return err
		}
	}
	return setDocumentStatus(ctx, tx, doc, DocStatusReceived)
}

// ReceiveStockDocument completes an in-transit transfer.
func ReceiveStockDocument(ctx context.Context, id int) (*StockDocument, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	db := config.GetDB()
	var doc *StockDocument
	err := runWithBusinessPostingLock(ctx, db, businessId, func(tx *gorm.DB) error {
		d, err := lockStockDocument(ctx, tx, businessId, id)
		if err != nil {
			return err
		}
		if d.DocType != DocTypeTransfer {
			return utils.NewStateError("only transfers can be received")
		}
		if d.CurrentStatus != DocStatusInTransit {
			return utils.NewStateError("only in-transit transfers can be received (status %s)", d.CurrentStatus)
		}
		if err := receiveTransferIn(ctx, tx, d); err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// CancelStockDocument aborts a document. Draft and confirmed documents cancel
// without ledger effect; an in-transit transfer restores the source decrement
// exactly, from the document's own lines.
func CancelStockDocument(ctx context.Context, id int, reason string) (*StockDocument, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if reason == "" {
		return nil, utils.NewValidationError("cancel reason is required")
	}

	// Posting lock first, then the document row lock: same ordering as every
	// posting path, so a cancel can never deadlock against a post or receive.
	db := config.GetDB()
	var doc *StockDocument
	err := runWithBusinessPostingLock(ctx, db, businessId, func(tx *gorm.DB) error {
		d, err := lockStockDocument(ctx, tx, businessId, id)
		if err != nil {
			return err
		}

		switch d.CurrentStatus {
		case DocStatusDraft, DocStatusConfirmed:
			// no ledger effect yet
		case DocStatusInTransit:
			for _, line := range d.Lines {
				if err := adjustStockLevel(ctx, tx, d.BusinessId, d.FromWarehouseId, line.VariantId,
					StockStatusInTransit, line.Quantity.Neg(), nil, MovementRefDocument, d.ID, d.DocNo+" cancel"); err != nil {
					return err
				}
				if err := adjustStockLevel(ctx, tx, d.BusinessId, d.FromWarehouseId, line.VariantId,
					StockStatusOnHand, line.Quantity, line.UnitCost, MovementRefDocument, d.ID, d.DocNo+" cancel"); err != nil {
					return err
				}
			}
		default:
			return utils.NewStateError("cannot cancel a %s document", d.CurrentStatus)
		}

		if err := tx.WithContext(ctx).Model(&StockDocument{}).
			Where("id = ?", d.ID).UpdateColumn("CancelReason", reason).Error; err != nil {
			return err
		}
		if err := setDocumentStatus(ctx, tx, d, DocStatusCancelled); err != nil {
			return err
		}
		d.CancelReason = reason
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func GetStockDocument(ctx context.Context, id int) (*StockDocument, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return utils.FetchModel[StockDocument](ctx, businessId, id, "Lines")
}

type StockDocumentFilter struct {
	DocType     *DocType   `form:"doc_type"`
	Status      *DocStatus `form:"status"`
	WarehouseId int        `form:"warehouse_id"`
}

func PaginateStockDocument(ctx context.Context, limit *int, after *string, filter *StockDocumentFilter) (*StockDocumentsConnection, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId).Preload("Lines")
	if filter != nil {
		if filter.DocType != nil {
			dbCtx.Where("doc_type = ?", *filter.DocType)
		}
		if filter.Status != nil {
			dbCtx.Where("current_status = ?", *filter.Status)
		}
		if filter.WarehouseId > 0 {
			dbCtx.Where("from_warehouse_id = ? OR to_warehouse_id = ?", filter.WarehouseId, filter.WarehouseId)
		}
	}

	pageLimit := 20
	if limit != nil && *limit > 0 {
		pageLimit = *limit
	}

	edges, pageInfo, err := FetchPageCompositeCursor[StockDocument](dbCtx, pageLimit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var conn StockDocumentsConnection
	conn.PageInfo = pageInfo
	for _, edge := range edges {
		docEdge := StockDocumentsEdge(edge)
		conn.Edges = append(conn.Edges, &docEdge)
	}
	return &conn, nil
}
