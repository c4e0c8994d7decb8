package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
)

// Product groups the variant family of one physical article (e.g. one
// cylinder size class). Stock is never tracked at product level.
type Product struct {
	ID          int       `gorm:"primary_key" json:"id"`
	BusinessId  string    `gorm:"index;not null" json:"business_id"`
	Name        string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Code        string    `gorm:"size:50;not null" json:"code" binding:"required"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetBusinessId() string {
	return p.BusinessId
}

func (p Product) RemoveRedisKeys() error {
	if err := utils.RemoveRedis[Product](p.ID); err != nil {
		return err
	}
	return utils.RemoveRedisList[Product](p.BusinessId)
}

type NewProduct struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Description string `json:"description"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewProduct) validate(ctx context.Context, businessId string, id int) error {
	if strings.TrimSpace(input.Name) == "" {
		return utils.NewValidationError("product name is required")
	}
	if strings.TrimSpace(input.Code) == "" {
		return utils.NewValidationError("product code is required")
	}
	if err := utils.ValidateUnique[Product](ctx, businessId, "code", input.Code, id); err != nil {
		return err
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	product := Product{
		BusinessId:  businessId,
		Name:        input.Name,
		Code:        strings.ToUpper(strings.TrimSpace(input.Code)),
		Description: input.Description,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Product](businessId); err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"Name":        input.Name,
		"Code":        strings.ToUpper(strings.TrimSpace(input.Code)),
		"Description": input.Description,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := product.RemoveRedisKeys(); err != nil {
		return nil, err
	}
	return product, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Variant](ctx, businessId, "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewConflictError("product has variants")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&product).Error; err != nil {
		return nil, err
	}
	if err := product.RemoveRedisKeys(); err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return GetResource[Product](ctx, id)
}

func ListProduct(ctx context.Context) ([]*Product, error) {
	return ListAllResource[Product](ctx, "name")
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.NewValidationError("business id is required")
	}
	return ToggleActiveModel[Product](ctx, businessId, id, isActive)
}
