package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmgasdepot/depot_backend/models"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// registerRoutes wires the REST surface. Handlers stay thin: bind, call the
// models layer, map the error kind to a status.
func registerRoutes(r *gin.Engine) {
	products := r.Group("/products")
	{
		products.POST("", createProductHandler)
		products.GET("", listProductsHandler)
		products.GET("/:id", getProductHandler)
		products.PUT("/:id", updateProductHandler)
		products.DELETE("/:id", deleteProductHandler)
		products.PUT("/:id/active", toggleProductActiveHandler)
	}

	warehouses := r.Group("/warehouses")
	{
		warehouses.POST("", createWarehouseHandler)
		warehouses.GET("", listWarehousesHandler)
		warehouses.GET("/:id", getWarehouseHandler)
		warehouses.PUT("/:id", updateWarehouseHandler)
		warehouses.DELETE("/:id", deleteWarehouseHandler)
		warehouses.PUT("/:id/active", toggleWarehouseActiveHandler)
	}

	variants := r.Group("/variants")
	{
		variants.POST("", createVariantHandler)
		variants.GET("", listVariantsHandler)
		variants.GET("/:id", getVariantHandler)
		variants.PUT("/:id", updateVariantHandler)
		variants.DELETE("/:id", deleteVariantHandler)
		variants.PUT("/:id/active", toggleVariantActiveHandler)
		variants.POST("/cylinder-set", createCylinderSetHandler)
		variants.POST("/complete-set", createCompleteSetHandler)
	}

	documents := r.Group("/stock-documents")
	{
		documents.POST("", createStockDocumentHandler)
		documents.GET("", listStockDocumentsHandler)
		documents.GET("/:id", getStockDocumentHandler)
		documents.PUT("/:id", updateStockDocumentHandler)
		documents.POST("/:id/confirm", confirmStockDocumentHandler)
		documents.POST("/:id/post", postStockDocumentHandler)
		documents.POST("/:id/receive", receiveStockDocumentHandler)
		documents.POST("/:id/cancel", cancelStockDocumentHandler)
	}

	levels := r.Group("/stock-levels")
	{
		levels.GET("", listStockLevelsHandler)
		levels.GET("/movements", listStockMovementsHandler)
		levels.GET("/reservations", listReservationsHandler)
		levels.POST("/adjust", adjustStockLevelHandler)
		levels.PUT("/unit-cost", setUnitCostHandler)
		levels.POST("/reserve", reserveHandler)
		levels.POST("/release", releaseHandler)
		levels.POST("/transfer", initiateTransferHandler)
		levels.POST("/physical-count", physicalCountHandler)
	}

	vehicles := r.Group("/vehicles")
	{
		vehicles.POST("", createVehicleHandler)
		vehicles.GET("", listVehiclesHandler)
		vehicles.GET("/:id", getVehicleHandler)
		vehicles.PUT("/:id", updateVehicleHandler)
		vehicles.DELETE("/:id", deleteVehicleHandler)
		vehicles.PUT("/:id/active", toggleVehicleActiveHandler)
		vehicles.POST("/:id/load", loadVehicleHandler)
		vehicles.POST("/:id/unload", unloadVehicleHandler)
		vehicles.GET("/:id/inventory", vehicleInventoryHandler)
	}
}

func respondError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		// Surface 5xx in the error log middleware; clients get a generic body.
		c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type activeInput struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type cancelInput struct {
	Reason string `json:"reason" binding:"required"`
}

type unitCostInput struct {
	WarehouseId int                `json:"warehouse_id" binding:"required"`
	VariantId   int                `json:"variant_id" binding:"required"`
	StockStatus models.StockStatus `json:"stock_status" binding:"required"`
	UnitCost    decimal.Decimal    `json:"unit_cost"`
}

// --- products ---

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func listProductsHandler(c *gin.Context) {
	products, err := models.ListProduct(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func getProductHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func updateProductHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func deleteProductHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	product, err := models.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func toggleProductActiveHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input activeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := models.ToggleActiveProduct(c.Request.Context(), id, *input.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// --- warehouses ---

func createWarehouseHandler(c *gin.Context) {
	var input models.NewWarehouse
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	warehouse, err := models.CreateWarehouse(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, warehouse)
}

func listWarehousesHandler(c *gin.Context) {
	var name *string
	if v := c.Query("name"); v != "" {
		name = &v
	}
	warehouses, err := models.ListWarehouse(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouses)
}

func getWarehouseHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	warehouse, err := models.GetWarehouse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouse)
}

func updateWarehouseHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.NewWarehouse
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	warehouse, err := models.UpdateWarehouse(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouse)
}

func deleteWarehouseHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	warehouse, err := models.DeleteWarehouse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouse)
}

func toggleWarehouseActiveHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input activeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	warehouse, err := models.ToggleActiveWarehouse(c.Request.Context(), id, *input.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouse)
}

// --- variants ---

func createVariantHandler(c *gin.Context) {
	var input models.NewVariant
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	variant, err := models.CreateVariant(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, variant)
}

// listVariantsHandler returns a cursor page when limit/after is present and a
// plain filtered list otherwise.
func listVariantsHandler(c *gin.Context) {
	var filter models.VariantFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if c.Query("limit") != "" || c.Query("after") != "" {
		var limit *int
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = &n
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}
		page, err := models.PaginateVariant(c.Request.Context(), limit, after, &filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
		return
	}

	variants, err := models.ListVariants(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variants)
}

func getVariantHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	variant, err := models.GetVariant(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variant)
}

func updateVariantHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.NewVariant
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	variant, err := models.UpdateVariant(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variant)
}

func deleteVariantHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	variant, err := models.DeleteVariant(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variant)
}

func toggleVariantActiveHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input activeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	variant, err := models.ToggleActiveVariant(c.Request.Context(), id, *input.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variant)
}

func createCylinderSetHandler(c *gin.Context) {
	var input models.NewCylinderSet
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	variants, err := models.CreateCylinderSet(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, variants)
}

func createCompleteSetHandler(c *gin.Context) {
	var input models.NewCompleteSet
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	variants, err := models.CreateCompleteSet(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, variants)
}

// --- stock documents ---

func createStockDocumentHandler(c *gin.Context) {
	var input models.NewStockDocument
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := models.CreateStockDocument(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func listStockDocumentsHandler(c *gin.Context) {
	var filter models.StockDocumentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var limit *int
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = &n
	}
	var after *string
	if v := c.Query("after"); v != "" {
		after = &v
	}
	page, err := models.PaginateStockDocument(c.Request.Context(), limit, after, &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func getStockDocumentHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	doc, err := models.GetStockDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func updateStockDocumentHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.NewStockDocument
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := models.UpdateStockDocument(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func confirmStockDocumentHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	doc, err := models.ConfirmStockDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func postStockDocumentHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	doc, err := models.PostStockDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func receiveStockDocumentHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	doc, err := models.ReceiveStockDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func cancelStockDocumentHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input cancelInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := models.CancelStockDocument(c.Request.Context(), id, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// --- stock levels ---

func listStockLevelsHandler(c *gin.Context) {
	var filter models.StockLevelFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	levels, err := models.GetStockLevels(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, levels)
}

func listStockMovementsHandler(c *gin.Context) {
	warehouseId, _ := strconv.Atoi(c.Query("warehouse_id"))
	variantId, _ := strconv.Atoi(c.Query("variant_id"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	movements, err := models.ListStockMovements(c.Request.Context(), warehouseId, variantId, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func listReservationsHandler(c *gin.Context) {
	reservations, err := models.ListReservations(c.Request.Context(), c.Query("owner_ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

func adjustStockLevelHandler(c *gin.Context) {
	var input models.StockAdjustmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	level, err := models.AdjustStockLevel(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, level)
}

func setUnitCostHandler(c *gin.Context) {
	var input unitCostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	level, err := models.SetUnitCost(c.Request.Context(), input.WarehouseId, input.VariantId, input.StockStatus, input.UnitCost)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, level)
}

func reserveHandler(c *gin.Context) {
	var input models.ReservationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.Reserve(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func releaseHandler(c *gin.Context) {
	var input models.ReservationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.Release(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func initiateTransferHandler(c *gin.Context) {
	var input models.NewTransfer
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := models.InitiateTransfer(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func physicalCountHandler(c *gin.Context) {
	var input models.PhysicalCountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.ReconcilePhysicalCount(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- vehicles ---

func createVehicleHandler(c *gin.Context) {
	var input models.NewVehicle
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	vehicle, err := models.CreateVehicle(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

func listVehiclesHandler(c *gin.Context) {
	vehicles, err := models.ListVehicle(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

func getVehicleHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	vehicle, err := models.GetVehicle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func updateVehicleHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.NewVehicle
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	vehicle, err := models.UpdateVehicle(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func deleteVehicleHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	vehicle, err := models.DeleteVehicle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func toggleVehicleActiveHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input activeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	vehicle, err := models.ToggleActiveVehicle(c.Request.Context(), id, *input.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

func loadVehicleHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.VehicleLoadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := models.LoadVehicle(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func unloadVehicleHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input models.VehicleLoadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := models.UnloadVehicle(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func vehicleInventoryHandler(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	inventory, err := models.GetVehicleInventory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inventory)
}
