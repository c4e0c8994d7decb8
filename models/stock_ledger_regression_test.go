package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmgasdepot/depot_backend/config"
	"bitbucket.org/mmgasdepot/depot_backend/models"
	"bitbucket.org/mmgasdepot/depot_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// End-to-end ledger regression: cylinder set weights, reservation limits,
// transfer legs, idempotent posting, conversion pairs, physical count
// reconciliation, cancel semantics, vehicle loading and concurrent access,
// against real MySQL + Redis.
func TestStockLedgerEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "depot_test")
	// The audit publisher needs pubsub credentials; keep writes local-only here.
	t.Setenv("AUDIT_OUTBOX_ENABLED", "false")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	businessID := uuid.NewString()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	// --- catalog setup ---

	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Gas Cylinder", Code: "GAS"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	// Scenario: cylinder set derives gross = tare + capacity on every member.
	set, err := models.CreateCylinderSet(ctx, &models.NewCylinderSet{
		ProductId:    product.ID,
		Size:         "13",
		TareWeightKg: decimal.NewFromInt(15),
		CapacityKg:   decimal.NewFromInt(13),
		GasPrice:     decimal.NewFromInt(9500),
	})
	if err != nil {
		t.Fatalf("CreateCylinderSet: %v", err)
	}
	if len(set) != 3 {
		t.Fatalf("expected 3 set members; got %d", len(set))
	}
	empty, full := set[0], set[1]
	if empty.StateAttr != models.VariantStateEmpty {
		t.Fatalf("expected the first member to be the empty cylinder; got %s", empty.StateAttr)
	}
	if full.StateAttr != models.VariantStateFull {
		t.Fatalf("expected the second member to be the full cylinder; got %s", full.StateAttr)
	}
	for _, m := range set[:2] {
		if m.GrossWeightKg == nil || !m.GrossWeightKg.Equal(decimal.NewFromInt(28)) {
			t.Fatalf("%s: expected gross weight 28", m.Sku)
		}
	}

	w1, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Main Depot"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	w2, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "North Depot"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}

	// Seed W1 with 100 full cylinders.
	if _, err := models.AdjustStockLevel(ctx, &models.StockAdjustmentInput{
		WarehouseId: w1.ID,
		VariantId:   full.ID,
		StockStatus: models.StockStatusOnHand,
		Delta:       decimal.NewFromInt(100),
		Reason:      "opening stock",
	}); err != nil {
		t.Fatalf("AdjustStockLevel(seed): %v", err)
	}

	totalAcrossBuckets := func() decimal.Decimal {
		total := decimal.Zero
		for _, wh := range []int{w1.ID, w2.ID} {
			for _, status := range models.AllStockStatuses() {
				level, err := models.GetStockLevel(ctx, wh, full.ID, status)
				if err != nil {
					t.Fatalf("GetStockLevel(%d,%s): %v", wh, status, err)
				}
				total = total.Add(level.Quantity)
			}
		}
		return total
	}

	// --- reservations ---

	reserve := func(qty int64) (*models.ReservationResult, error) {
		return models.Reserve(ctx, &models.ReservationInput{
			WarehouseId: w1.ID,
			VariantId:   full.ID,
			StockStatus: models.StockStatusOnHand,
			Quantity:    decimal.NewFromInt(qty),
			OwnerRef:    "SO-1001",
		})
	}

	res, err := reserve(30)
	if err != nil {
		t.Fatalf("Reserve(30): %v", err)
	}
	if !res.RemainingAvailable.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected available 70 after reserving 30; got %s", res.RemainingAvailable.String())
	}

	if _, err := reserve(80); utils.KindOf(err) != utils.ErrorKindInsufficientStock {
		t.Fatalf("Reserve(80) over 70 available should fail with insufficient stock; got %v", err)
	}

	res, err = reserve(70)
	if err != nil {
		t.Fatalf("Reserve(70): %v", err)
	}
	if !res.RemainingAvailable.IsZero() {
		t.Fatalf("expected available 0 after reserving everything; got %s", res.RemainingAvailable.String())
	}

	// Release it all so the transfer below has available stock.
	if _, err := models.Release(ctx, &models.ReservationInput{
		WarehouseId: w1.ID,
		VariantId:   full.ID,
		StockStatus: models.StockStatusOnHand,
		Quantity:    decimal.NewFromInt(100),
		OwnerRef:    "SO-1001",
	}); err != nil {
		t.Fatalf("Release(100): %v", err)
	}
	level, err := models.GetStockLevel(ctx, w1.ID, full.ID, models.StockStatusOnHand)
	if err != nil {
		t.Fatalf("GetStockLevel: %v", err)
	}
	if !level.ReservedQty.IsZero() {
		t.Fatalf("expected reserved 0 after full release; got %s", level.ReservedQty.String())
	}

	// --- transfer legs ---

	transfer, err := models.InitiateTransfer(ctx, &models.NewTransfer{
		FromWarehouseId: w1.ID,
		ToWarehouseId:   w2.ID,
		Lines: []models.NewStockDocumentLine{
			{VariantId: full.ID, Quantity: decimal.NewFromInt(20)},
		},
	})
	if err != nil {
		t.Fatalf("InitiateTransfer: %v", err)
	}
	if transfer.CurrentStatus != models.DocStatusInTransit {
		t.Fatalf("expected IN_TRANSIT after initiation; got %s", transfer.CurrentStatus)
	}

	mustQty := func(wh int, status models.StockStatus, want int64) {
		t.Helper()
		level, err := models.GetStockLevel(ctx, wh, full.ID, status)
		if err != nil {
			t.Fatalf("GetStockLevel(%d,%s): %v", wh, status, err)
		}
		if !level.Quantity.Equal(decimal.NewFromInt(want)) {
			t.Fatalf("warehouse %d %s: expected %d; got %s", wh, status, want, level.Quantity.String())
		}
	}

	mustQty(w1.ID, models.StockStatusOnHand, 80)
	mustQty(w1.ID, models.StockStatusInTransit, 20)
	mustQty(w2.ID, models.StockStatusOnHand, 0)
	if total := totalAcrossBuckets(); !total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("transfer must conserve total quantity; got %s", total.String())
	}

	received, err := models.ReceiveTransfer(ctx, transfer.ID)
	if err != nil {
		t.Fatalf("ReceiveTransfer: %v", err)
	}
	if received.CurrentStatus != models.DocStatusReceived {
		t.Fatalf("expected RECEIVED; got %s", received.CurrentStatus)
	}
	mustQty(w1.ID, models.StockStatusInTransit, 0)
	mustQty(w2.ID, models.StockStatusOnHand, 20)
	if total := totalAcrossBuckets(); !total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("receive must conserve total quantity; got %s", total.String())
	}

	// --- idempotent posting ---

	receipt, err := models.CreateStockDocument(ctx, &models.NewStockDocument{
		DocType:       models.DocTypeReceipt,
		ToWarehouseId: w2.ID,
		Lines: []models.NewStockDocumentLine{
			{VariantId: full.ID, Quantity: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("CreateStockDocument: %v", err)
	}
	if !strings.HasPrefix(receipt.DocNo, "REC-") {
		t.Fatalf("unexpected document number %q", receipt.DocNo)
	}
	if _, err := models.ConfirmStockDocument(ctx, receipt.ID); err != nil {
		t.Fatalf("ConfirmStockDocument: %v", err)
	}
	if _, err := models.PostStockDocument(ctx, receipt.ID); err != nil {
		t.Fatalf("PostStockDocument: %v", err)
	}
	mustQty(w2.ID, models.StockStatusOnHand, 30)

	if _, err := models.PostStockDocument(ctx, receipt.ID); utils.KindOf(err) != utils.ErrorKindState {
		t.Fatalf("second post should be a StateError; got %v", err)
	}
	mustQty(w2.ID, models.StockStatusOnHand, 30) // no double apply

	// The advisory posting lock has to be released on the live transaction;
	// a leaked lock would stall every later posting for this business.
	var lockFree int
	if err := config.GetDB().Raw("SELECT IS_FREE_LOCK(?)", "posting:"+businessID).Scan(&lockFree).Error; err != nil {
		t.Fatalf("IS_FREE_LOCK: %v", err)
	}
	if lockFree != 1 {
		t.Fatal("posting lock still held after posting completed")
	}

	// --- conversion pairs ---

	// Decant 5 fulls into empties at W2: paired lines, same warehouse,
	// opposite fill states.
	conversion, err := models.CreateStockDocument(ctx, &models.NewStockDocument{
		DocType:         models.DocTypeConversion,
		FromWarehouseId: w2.ID,
		Lines: []models.NewStockDocumentLine{
			{VariantId: full.ID, Quantity: decimal.NewFromInt(5)},
			{VariantId: empty.ID, Quantity: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("CreateStockDocument(conversion): %v", err)
	}
	if _, err := models.ConfirmStockDocument(ctx, conversion.ID); err != nil {
		t.Fatalf("ConfirmStockDocument(conversion): %v", err)
	}
	if _, err := models.PostStockDocument(ctx, conversion.ID); err != nil {
		t.Fatalf("PostStockDocument(conversion): %v", err)
	}
	mustQty(w2.ID, models.StockStatusOnHand, 25)
	emptyLevel, err := models.GetStockLevel(ctx, w2.ID, empty.ID, models.StockStatusOnHand)
	if err != nil {
		t.Fatalf("GetStockLevel(empty): %v", err)
	}
	if !emptyLevel.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("conversion should credit 5 empties; got %s", emptyLevel.Quantity.String())
	}

	// Pairs with mismatched quantities never make it past validation.
	if _, err := models.CreateStockDocument(ctx, &models.NewStockDocument{
		DocType:         models.DocTypeConversion,
		FromWarehouseId: w2.ID,
		Lines: []models.NewStockDocumentLine{
			{VariantId: full.ID, Quantity: decimal.NewFromInt(3)},
			{VariantId: empty.ID, Quantity: decimal.NewFromInt(2)},
		},
	}); utils.KindOf(err) != utils.ErrorKindValidation {
		t.Fatalf("mismatched conversion pair should be a validation error; got %v", err)
	}

	// --- physical count reconciliation ---

	recon, err := models.ReconcilePhysicalCount(ctx, &models.PhysicalCountInput{
		WarehouseId: w1.ID,
		VariantId:   full.ID,
		StockStatus: models.StockStatusOnHand,
		CountedQty:  decimal.NewFromInt(75),
	})
	if err != nil {
		t.Fatalf("ReconcilePhysicalCount: %v", err)
	}
	if !recon.Variance.Equal(decimal.NewFromInt(-5)) {
		t.Fatalf("expected variance -5; got %s", recon.Variance.String())
	}
	if recon.Document == nil || recon.Document.DocType != models.DocTypeIssue {
		t.Fatalf("negative variance should post an issue document")
	}
	if recon.Document.CurrentStatus != models.DocStatusPosted {
		t.Fatalf("variance document should post immediately; got %s", recon.Document.CurrentStatus)
	}
	mustQty(w1.ID, models.StockStatusOnHand, 75)

	// Matching count is a no-op.
	recon, err = models.ReconcilePhysicalCount(ctx, &models.PhysicalCountInput{
		WarehouseId: w1.ID,
		VariantId:   full.ID,
		StockStatus: models.StockStatusOnHand,
		CountedQty:  decimal.NewFromInt(75),
	})
	if err != nil {
		t.Fatalf("ReconcilePhysicalCount(match): %v", err)
	}
	if !recon.Variance.IsZero() || recon.Document != nil {
		t.Fatalf("matching count must not post a document")
	}

	// --- cancel semantics ---

	draft, err := models.CreateStockDocument(ctx, &models.NewStockDocument{
		DocType:         models.DocTypeIssue,
		FromWarehouseId: w1.ID,
		Lines: []models.NewStockDocumentLine{
			{VariantId: full.ID, Quantity: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("CreateStockDocument(draft): %v", err)
	}
	if _, err := models.CancelStockDocument(ctx, draft.ID, "entered in error"); err != nil {
		t.Fatalf("CancelStockDocument(draft): %v", err)
	}
	mustQty(w1.ID, models.StockStatusOnHand, 75) // ledger untouched

	inTransit, err := models.InitiateTransfer(ctx, &models.NewTransfer{
		FromWarehouseId: w1.ID,
		ToWarehouseId:   w2.ID,
		Lines: []models.NewStockDocumentLine{
			{VariantId: full.ID, Quantity: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("InitiateTransfer(cancel case): %v", err)
	}
	mustQty(w1.ID, models.StockStatusOnHand, 65)
	if _, err := models.CancelInTransitTransfer(ctx, inTransit.ID, "truck broke down"); err != nil {
		t.Fatalf("CancelInTransitTransfer: %v", err)
	}
	mustQty(w1.ID, models.StockStatusOnHand, 75) // restored exactly
	mustQty(w1.ID, models.StockStatusInTransit, 0)

	// --- vehicle loading ---

	vehicle, err := models.CreateVehicle(ctx, &models.NewVehicle{
		Name:         "Delivery Truck 1",
		LicensePlate: "9K-1234",
		CapacityKg:   decimal.NewFromInt(1000),
		CapacityM3:   decimal.NewFromInt(12),
	})
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}

	loadDoc, err := models.LoadVehicle(ctx, vehicle.ID, &models.VehicleLoadInput{
		WarehouseId: w1.ID,
		Lines: []models.NewStockDocumentLine{
			{VariantId: full.ID, Quantity: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("LoadVehicle: %v", err)
	}
	if loadDoc.CurrentStatus != models.DocStatusPosted {
		t.Fatalf("load document should post immediately; got %s", loadDoc.CurrentStatus)
	}
	mustQty(w1.ID, models.StockStatusOnHand, 65)

	inventory, err := models.GetVehicleInventory(ctx, vehicle.ID)
	if err != nil {
		t.Fatalf("GetVehicleInventory: %v", err)
	}
	if !inventory.TotalWeightKg.Equal(decimal.NewFromInt(280)) {
		t.Fatalf("expected 10 cylinders x 28kg = 280 on the truck; got %s", inventory.TotalWeightKg.String())
	}

	// Over-capacity load refused: 30 more cylinders would exceed 1000 kg.
	if _, err := models.LoadVehicle(ctx, vehicle.ID, &models.VehicleLoadInput{
		WarehouseId: w1.ID,
		Lines: []models.NewStockDocumentLine{
			{VariantId: full.ID, Quantity: decimal.NewFromInt(30)},
		},
	}); utils.KindOf(err) != utils.ErrorKindCapacityExceeded {
		t.Fatalf("expected CapacityExceededError; got %v", err)
	}

	if _, err := models.UnloadVehicle(ctx, vehicle.ID, &models.VehicleLoadInput{
		WarehouseId: w1.ID,
		Lines: []models.NewStockDocumentLine{
			{VariantId: full.ID, Quantity: decimal.NewFromInt(10)},
		},
	}); err != nil {
		t.Fatalf("UnloadVehicle: %v", err)
	}
	mustQty(w1.ID, models.StockStatusOnHand, 75)

	inventory, err = models.GetVehicleInventory(ctx, vehicle.ID)
	if err != nil {
		t.Fatalf("GetVehicleInventory(after unload): %v", err)
	}
	if !inventory.TotalWeightKg.IsZero() {
		t.Fatalf("truck should be empty after unload; got %s kg", inventory.TotalWeightKg.String())
	}

	// A load drafted through the generic document flow hits the same capacity
	// gate when it posts: 40 cylinders x 28 kg would exceed the 1000 kg truck.
	bigLoad, err := models.CreateStockDocument(ctx, &models.NewStockDocument{
		DocType:         models.DocTypeVehicleLoad,
		FromWarehouseId: w1.ID,
		VehicleId:       vehicle.ID,
		Lines: []models.NewStockDocumentLine{
			{VariantId: full.ID, Quantity: decimal.NewFromInt(40)},
		},
	})
	if err != nil {
		t.Fatalf("CreateStockDocument(load): %v", err)
	}
	if _, err := models.ConfirmStockDocument(ctx, bigLoad.ID); err != nil {
		t.Fatalf("ConfirmStockDocument(load): %v", err)
	}
	if _, err := models.PostStockDocument(ctx, bigLoad.ID); utils.KindOf(err) != utils.ErrorKindCapacityExceeded {
		t.Fatalf("over-capacity load posted generically should be refused; got %v", err)
	}
	mustQty(w1.ID, models.StockStatusOnHand, 75) // posting rolled back cleanly

	// --- concurrent access ---

	// Two clients race to reserve 50 of the 75 available; the row lock admits
	// exactly one.
	var wg sync.WaitGroup
	reserveErrs := make([]error, 2)
	for i := range reserveErrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, reserveErrs[i] = models.Reserve(ctx, &models.ReservationInput{
				WarehouseId: w1.ID,
				VariantId:   full.ID,
				StockStatus: models.StockStatusOnHand,
				Quantity:    decimal.NewFromInt(50),
				OwnerRef:    fmt.Sprintf("SO-200%d", i),
			})
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, err := range reserveErrs {
		if err == nil {
			wins++
		} else if utils.KindOf(err) != utils.ErrorKindInsufficientStock {
			t.Fatalf("losing reserve should be insufficient stock; got %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one of two concurrent reserves to win; got %d", wins)
	}
	level, err = models.GetStockLevel(ctx, w1.ID, full.ID, models.StockStatusOnHand)
	if err != nil {
		t.Fatalf("GetStockLevel(after race): %v", err)
	}
	if !level.ReservedQty.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected reserved 50 after the race; got %s", level.ReservedQty.String())
	}

	// First touch of a fresh ledger key under contention: the loser of the
	// unique-index race gets a retryable conflict, never a raw driver error.
	adjustErrs := make([]error, 2)
	for i := range adjustErrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, adjustErrs[i] = models.AdjustStockLevel(ctx, &models.StockAdjustmentInput{
				WarehouseId: w2.ID,
				VariantId:   empty.ID,
				StockStatus: models.StockStatusQuarantine,
				Delta:       decimal.NewFromInt(5),
				Reason:      "damaged on arrival",
			})
		}(i)
	}
	wg.Wait()
	applied := int64(0)
	for _, err := range adjustErrs {
		if err == nil {
			applied += 5
		} else if utils.KindOf(err) != utils.ErrorKindConflict {
			t.Fatalf("first-touch race must surface as a conflict; got %v", err)
		}
	}
	if applied == 0 {
		t.Fatal("at least one concurrent first-touch adjustment should succeed")
	}
	quarantine, err := models.GetStockLevel(ctx, w2.ID, empty.ID, models.StockStatusQuarantine)
	if err != nil {
		t.Fatalf("GetStockLevel(quarantine): %v", err)
	}
	if !quarantine.Quantity.Equal(decimal.NewFromInt(applied)) {
		t.Fatalf("expected quarantine quantity %d; got %s", applied, quarantine.Quantity.String())
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("depot-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("depot-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=depot_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
