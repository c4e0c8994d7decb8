package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Variant is one SKU of the atomic SKU model. A physical article is split into
// separately tracked variants (empty unit, full unit, consumable content,
// deposit liability, sellable bundle) sharing a product and size.
type Variant struct {
	ID               int              `gorm:"primary_key" json:"id"`
	BusinessId       string           `gorm:"index;not null" json:"business_id"`
	ProductId        int              `gorm:"index;not null" json:"product_id" binding:"required"`
	Sku              string           `gorm:"size:100;not null" json:"sku" binding:"required"`
	Name             string           `gorm:"size:255;not null" json:"name" binding:"required"`
	SkuType          SkuType          `gorm:"type:enum('ASSET','CONSUMABLE','DEPOSIT','BUNDLE');not null" json:"sku_type" binding:"required"`
	StateAttr        VariantState     `gorm:"type:enum('EMPTY','FULL','');default:''" json:"state_attr"`
	Size             string           `gorm:"size:50;not null" json:"size" binding:"required"`
	IsStockItem      *bool            `gorm:"not null;default:true" json:"is_stock_item"`
	AffectsInventory *bool            `gorm:"not null;default:true" json:"affects_inventory"`
	RevenueCategory  string           `gorm:"size:100" json:"revenue_category"`
	TareWeightKg     *decimal.Decimal `gorm:"type:decimal(20,4)" json:"tare_weight_kg"`
	CapacityKg       *decimal.Decimal `gorm:"type:decimal(20,4)" json:"capacity_kg"`
	// derived from tare + capacity, never caller input
	GrossWeightKg  *decimal.Decimal `gorm:"type:decimal(20,4)" json:"gross_weight_kg"`
	VolumeM3       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"volume_m3"`
	SalesPrice     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"sales_price"`
	DepositAmount  decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"deposit_amount"`
	InspectionDate *time.Time       `json:"inspection_date"`
	IsActive       *bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v Variant) GetId() int {
	return v.ID
}

func (v Variant) GetBusinessId() string {
	return v.BusinessId
}

func (v Variant) GetCursor() string {
	return v.Sku
}

func (v Variant) RemoveRedisKeys() error {
	if err := utils.RemoveRedis[Variant](v.ID); err != nil {
		return err
	}
	return utils.RemoveRedisList[Variant](v.BusinessId)
}

// WeightBearing reports whether the variant carries physical weight fields.
func (v Variant) WeightBearing() bool {
	return v.SkuType == SkuTypeAsset
}

type VariantsEdge Edge[Variant]
type VariantsConnection struct {
	Edges    []*VariantsEdge `json:"edges"`
	PageInfo *PageInfo       `json:"pageInfo"`
}

type NewVariant struct {
	ProductId        int              `json:"product_id" binding:"required"`
	Sku              string           `json:"sku" binding:"required"`
	Name             string           `json:"name" binding:"required"`
	SkuType          SkuType          `json:"sku_type" binding:"required"`
	StateAttr        VariantState     `json:"state_attr"`
	Size             string           `json:"size" binding:"required"`
	IsStockItem      *bool            `json:"is_stock_item"`
	AffectsInventory *bool            `json:"affects_inventory"`
	RevenueCategory  string           `json:"revenue_category"`
	TareWeightKg     *decimal.Decimal `json:"tare_weight_kg"`
	CapacityKg       *decimal.Decimal `json:"capacity_kg"`
	VolumeM3         decimal.Decimal  `json:"volume_m3"`
	SalesPrice       decimal.Decimal  `json:"sales_price"`
	DepositAmount    decimal.Decimal  `json:"deposit_amount"`
	InspectionDate   *time.Time       `json:"inspection_date"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewVariant) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateResourceId[Product](ctx, businessId, input.ProductId); err != nil {
		return utils.NewValidationError("product not found")
	}
	if strings.TrimSpace(input.Sku) == "" {
		return utils.NewValidationError("sku is required")
	}
	if strings.TrimSpace(input.Size) == "" {
		return utils.NewValidationError("size is required")
	}
	if !input.SkuType.Valid() {
		return utils.NewValidationError("invalid sku type")
	}
	if err := utils.ValidateUnique[Variant](ctx, businessId, "sku", input.Sku, id); err != nil {
		return err
	}
	if input.SkuType == SkuTypeAsset {
		if input.TareWeightKg == nil || input.CapacityKg == nil {
			return utils.NewValidationError("tare_weight_kg and capacity_kg are required for asset variants")
		}
		if input.TareWeightKg.IsNegative() || input.CapacityKg.IsNegative() {
			return utils.NewValidationError("weight fields cannot be negative")
		}
		if input.StateAttr != VariantStateEmpty && input.StateAttr != VariantStateFull {
			return utils.NewValidationError("asset variants require an EMPTY or FULL state")
		}
	} else if input.StateAttr != VariantStateNone {
		return utils.NewValidationError("state only applies to asset variants")
	}
	if input.VolumeM3.IsNegative() || input.SalesPrice.IsNegative() || input.DepositAmount.IsNegative() {
		return utils.NewValidationError("amount fields cannot be negative")
	}
	return nil
}

// grossWeight derives the stored gross weight. Returns nil when either
// component is absent.
func grossWeight(tare, capacity *decimal.Decimal) *decimal.Decimal {
	if tare == nil || capacity == nil {
		return nil
	}
	gross := tare.Add(*capacity)
	return &gross
}

func (input *NewVariant) toModel(businessId string) Variant {
	isStockItem := input.IsStockItem
	if isStockItem == nil {
		isStockItem = utils.NewTrue()
	}
	affectsInventory := input.AffectsInventory
	if affectsInventory == nil {
		affectsInventory = utils.NewTrue()
	}
	return Variant{
		BusinessId:       businessId,
		ProductId:        input.ProductId,
		Sku:              strings.ToUpper(strings.TrimSpace(input.Sku)),
		Name:             input.Name,
		SkuType:          input.SkuType,
		StateAttr:        input.StateAttr,
		Size:             input.Size,
		IsStockItem:      isStockItem,
		AffectsInventory: affectsInventory,
		RevenueCategory:  input.RevenueCategory,
		TareWeightKg:     input.TareWeightKg,
		CapacityKg:       input.CapacityKg,
		GrossWeightKg:    grossWeight(input.TareWeightKg, input.CapacityKg),
		VolumeM3:         input.VolumeM3,
		SalesPrice:       input.SalesPrice,
		DepositAmount:    input.DepositAmount,
		InspectionDate:   input.InspectionDate,
		IsActive:         utils.NewTrue(),
	}
}

func CreateVariant(ctx context.Context, input *NewVariant) (*Variant, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	variant := input.toModel(businessId)

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&variant).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Variant](businessId); err != nil {
		return nil, err
	}
	return &variant, nil
}

// referenced by a posted or received document line
func variantPostedLineCount(ctx context.Context, db *gorm.DB, businessId string, variantId int) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&StockDocumentLine{}).
		Joins("JOIN stock_documents ON stock_documents.id = stock_document_lines.stock_document_id").
		Where("stock_documents.business_id = ? AND stock_document_lines.variant_id = ? AND stock_documents.current_status IN ?",
			businessId, variantId, []DocStatus{DocStatusPosted, DocStatusReceived, DocStatusInTransit}).
		Count(&count).Error
	return count, err
}

func UpdateVariant(ctx context.Context, id int, input *NewVariant) (*Variant, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	variant, err := utils.FetchModel[Variant](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()

	// physical identity is frozen once ledger history references the variant
	count, err := variantPostedLineCount(ctx, db, businessId, id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		identityChanged := variant.SkuType != input.SkuType ||
			variant.StateAttr != input.StateAttr ||
			!decimalPtrEqual(variant.TareWeightKg, input.TareWeightKg) ||
			!decimalPtrEqual(variant.CapacityKg, input.CapacityKg)
		if identityChanged {
			return nil, utils.NewConflictError("variant is referenced by posted documents")
		}
	}

	err = db.WithContext(ctx).Model(&variant).Updates(map[string]interface{}{
		"Sku":              strings.ToUpper(strings.TrimSpace(input.Sku)),
		"Name":             input.Name,
		"SkuType":          input.SkuType,
		"StateAttr":        input.StateAttr,
		"Size":             input.Size,
		"IsStockItem":      input.IsStockItem,
		"AffectsInventory": input.AffectsInventory,
		"RevenueCategory":  input.RevenueCategory,
		"TareWeightKg":     input.TareWeightKg,
		"CapacityKg":       input.CapacityKg,
		"GrossWeightKg":    grossWeight(input.TareWeightKg, input.CapacityKg),
		"VolumeM3":         input.VolumeM3,
		"SalesPrice":       input.SalesPrice,
		"DepositAmount":    input.DepositAmount,
		"InspectionDate":   input.InspectionDate,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := variant.RemoveRedisKeys(); err != nil {
		return nil, err
	}
	return variant, nil
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func DeleteVariant(ctx context.Context, id int) (*Variant, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	variant, err := utils.FetchModel[Variant](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()

	var count int64
	err = db.WithContext(ctx).Model(&StockDocumentLine{}).
		Joins("JOIN stock_documents ON stock_documents.id = stock_document_lines.stock_document_id").
		Where("stock_documents.business_id = ? AND stock_document_lines.variant_id = ? AND stock_documents.current_status <> ?",
			businessId, id, DocStatusCancelled).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewConflictError("variant is referenced by stock documents")
	}

	if err := db.WithContext(ctx).Model(&StockLevel{}).
		Where("business_id = ? AND variant_id = ? AND (quantity > 0 OR reserved_qty > 0)", businessId, id).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewConflictError("variant has stock")
	}

	if err := db.WithContext(ctx).Delete(&variant).Error; err != nil {
		return nil, err
	}
	if err := variant.RemoveRedisKeys(); err != nil {
		return nil, err
	}
	return variant, nil
}

func GetVariant(ctx context.Context, id int) (*Variant, error) {
	return GetResource[Variant](ctx, id)
}

type VariantFilter struct {
	ProductId   int      `form:"product_id"`
	SkuType     *SkuType `form:"sku_type"`
	IsStockItem *bool    `form:"is_stock_item"`
	Sku         *string  `form:"sku"`
}

func ListVariants(ctx context.Context, filter *VariantFilter) ([]*Variant, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter != nil {
		if filter.ProductId > 0 {
			dbCtx = dbCtx.Where("product_id = ?", filter.ProductId)
		}
		if filter.SkuType != nil {
			dbCtx = dbCtx.Where("sku_type = ?", *filter.SkuType)
		}
		if filter.IsStockItem != nil {
			dbCtx = dbCtx.Where("is_stock_item = ?", *filter.IsStockItem)
		}
		if filter.Sku != nil && *filter.Sku != "" {
			dbCtx = dbCtx.Where("sku LIKE ?", "%"+*filter.Sku+"%")
		}
	}

	var results []*Variant
	if err := dbCtx.Order("sku").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateVariant(ctx context.Context, limit *int, after *string, filter *VariantFilter) (*VariantsConnection, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter != nil {
		if filter.ProductId > 0 {
			dbCtx.Where("product_id = ?", filter.ProductId)
		}
		if filter.SkuType != nil {
			dbCtx.Where("sku_type = ?", *filter.SkuType)
		}
		if filter.IsStockItem != nil {
			dbCtx.Where("is_stock_item = ?", *filter.IsStockItem)
		}
	}

	pageLimit := 20
	if limit != nil && *limit > 0 {
		pageLimit = *limit
	}

	edges, pageInfo, err := FetchPagePureCursor[Variant](dbCtx, pageLimit, after, "sku", ">")
	if err != nil {
		return nil, err
	}

	var conn VariantsConnection
	conn.PageInfo = pageInfo
	for _, edge := range edges {
		variantsEdge := VariantsEdge(edge)
		conn.Edges = append(conn.Edges, &variantsEdge)
	}
	return &conn, nil
}

type NewCylinderSet struct {
	ProductId      int             `json:"product_id" binding:"required"`
	Size           string          `json:"size" binding:"required"`
	TareWeightKg   decimal.Decimal `json:"tare_weight_kg"`
	CapacityKg     decimal.Decimal `json:"capacity_kg"`
	GasPrice       decimal.Decimal `json:"gas_price"`
	InspectionDate *time.Time      `json:"inspection_date"`
}

type NewCompleteSet struct {
	NewCylinderSet
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	BundlePrice   decimal.Decimal `json:"bundle_price"`
}

func (input *NewCylinderSet) validate(ctx context.Context, businessId string) error {
	if input.ProductId == 0 {
		return utils.NewValidationError("product_id is required")
	}
	if strings.TrimSpace(input.Size) == "" {
		return utils.NewValidationError("size is required")
	}
	if err := utils.ValidateResourceId[Product](ctx, businessId, input.ProductId); err != nil {
		return utils.NewValidationError("product not found")
	}
	if input.TareWeightKg.IsNegative() || input.CapacityKg.IsNegative() {
		return utils.NewValidationError("weight fields cannot be negative")
	}
	return nil
}

func setMemberSku(productCode, size, suffix string) string {
	return strings.ToUpper(fmt.Sprintf("%s-%s-%s", productCode, size, suffix))
}

// cylinderSetMembers builds the closed family for one cylinder size: the
// empty unit, the full unit and the gas content.
func (input *NewCylinderSet) cylinderSetMembers(businessId string, product *Product) []Variant {
	tare := input.TareWeightKg
	capacity := input.CapacityKg
	gross := tare.Add(capacity)

	return []Variant{
		{
			BusinessId:       businessId,
			ProductId:        input.ProductId,
			Sku:              setMemberSku(product.Code, input.Size, "E"),
			Name:             fmt.Sprintf("%s %s Empty Cylinder", product.Name, input.Size),
			SkuType:          SkuTypeAsset,
			StateAttr:        VariantStateEmpty,
			Size:             input.Size,
			IsStockItem:      utils.NewTrue(),
			AffectsInventory: utils.NewTrue(),
			RevenueCategory:  "CYLINDER",
			TareWeightKg:     &tare,
			CapacityKg:       &capacity,
			GrossWeightKg:    &gross,
			InspectionDate:   input.InspectionDate,
			IsActive:         utils.NewTrue(),
		},
		{
			BusinessId:       businessId,
			ProductId:        input.ProductId,
			Sku:              setMemberSku(product.Code, input.Size, "F"),
			Name:             fmt.Sprintf("%s %s Full Cylinder", product.Name, input.Size),
			SkuType:          SkuTypeAsset,
			StateAttr:        VariantStateFull,
			Size:             input.Size,
			IsStockItem:      utils.NewTrue(),
			AffectsInventory: utils.NewTrue(),
			RevenueCategory:  "CYLINDER",
			TareWeightKg:     &tare,
			CapacityKg:       &capacity,
			GrossWeightKg:    &gross,
			InspectionDate:   input.InspectionDate,
			IsActive:         utils.NewTrue(),
		},
		{
			BusinessId:       businessId,
			ProductId:        input.ProductId,
			Sku:              setMemberSku(product.Code, input.Size, "G"),
			Name:             fmt.Sprintf("%s %s Gas Content", product.Name, input.Size),
			SkuType:          SkuTypeConsumable,
			StateAttr:        VariantStateNone,
			Size:             input.Size,
			IsStockItem:      utils.NewFalse(),
			AffectsInventory: utils.NewFalse(),
			RevenueCategory:  "GAS",
			SalesPrice:       input.GasPrice,
			IsActive:         utils.NewTrue(),
		},
	}
}

func createSetMembers(ctx context.Context, businessId string, members []Variant) ([]*Variant, error) {
	db := config.GetDB()

	for i := range members {
		if err := utils.ValidateUnique[Variant](ctx, businessId, "sku", members[i].Sku, 0); err != nil {
			return nil, err
		}
	}

	tx := db.Begin()
	created := make([]*Variant, 0, len(members))
	for i := range members {
		if err := tx.WithContext(ctx).Create(&members[i]).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		created = append(created, &members[i])
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Variant](businessId); err != nil {
		return nil, err
	}
	return created, nil
}

// CreateCylinderSet produces the empty/full/gas variant family for one size.
func CreateCylinderSet(ctx context.Context, input *NewCylinderSet) ([]*Variant, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	product, err := GetProduct(ctx, input.ProductId)
	if err != nil {
		return nil, err
	}

	return createSetMembers(ctx, businessId, input.cylinderSetMembers(businessId, product))
}

// CreateCompleteSet extends a cylinder set with the deposit liability and the
// sellable bundle.
func CreateCompleteSet(ctx context.Context, input *NewCompleteSet) ([]*Variant, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}
	if input.DepositAmount.IsNegative() || input.BundlePrice.IsNegative() {
		return nil, utils.NewValidationError("amount fields cannot be negative")
	}

	product, err := GetProduct(ctx, input.ProductId)
	if err != nil {
		return nil, err
	}

	members := input.cylinderSetMembers(businessId, product)
	members = append(members,
		Variant{
			BusinessId:       businessId,
			ProductId:        input.ProductId,
			Sku:              setMemberSku(product.Code, input.Size, "D"),
			Name:             fmt.Sprintf("%s %s Deposit", product.Name, input.Size),
			SkuType:          SkuTypeDeposit,
			StateAttr:        VariantStateNone,
			Size:             input.Size,
			IsStockItem:      utils.NewFalse(),
			AffectsInventory: utils.NewFalse(),
			RevenueCategory:  "DEPOSIT",
			DepositAmount:    input.DepositAmount,
			IsActive:         utils.NewTrue(),
		},
		Variant{
			BusinessId:       businessId,
			ProductId:        input.ProductId,
			Sku:              setMemberSku(product.Code, input.Size, "B"),
			Name:             fmt.Sprintf("%s %s Complete Set", product.Name, input.Size),
			SkuType:          SkuTypeBundle,
			StateAttr:        VariantStateNone,
			Size:             input.Size,
			IsStockItem:      utils.NewFalse(),
			AffectsInventory: utils.NewFalse(),
			RevenueCategory:  "BUNDLE",
			SalesPrice:       input.BundlePrice,
			IsActive:         utils.NewTrue(),
		},
	)

	return createSetMembers(ctx, businessId, members)
}

func ToggleActiveVariant(ctx context.Context, id int, isActive bool) (*Variant, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return ToggleActiveModel[Variant](ctx, businessId, id, isActive)
}
