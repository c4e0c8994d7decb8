package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestGrossWeightDerivation(t *testing.T) {
	tare := decimal.NewFromInt(15)
	capacity := decimal.NewFromInt(13)

	gross := grossWeight(&tare, &capacity)
	if gross == nil {
		t.Fatal("gross weight should derive when both components are set")
	}
	if !gross.Equal(decimal.NewFromInt(28)) {
		t.Fatalf("expected gross 28; got %s", gross.String())
	}

	if grossWeight(nil, &capacity) != nil {
		t.Error("gross weight must be nil without tare")
	}
	if grossWeight(&tare, nil) != nil {
		t.Error("gross weight must be nil without capacity")
	}
}

func TestSetMemberSku(t *testing.T) {
	if got := setMemberSku("gas", "13", "e"); got != "GAS-13-E" {
		t.Fatalf("expected GAS-13-E; got %s", got)
	}
}

func TestCylinderSetMembers(t *testing.T) {
	input := &NewCylinderSet{
		ProductId:    7,
		Size:         "13",
		TareWeightKg: decimal.NewFromInt(15),
		CapacityKg:   decimal.NewFromInt(13),
		GasPrice:     decimal.NewFromInt(9500),
	}
	product := &Product{Name: "Gas Cylinder", Code: "GAS"}

	members := input.cylinderSetMembers("biz-1", product)
	if len(members) != 3 {
		t.Fatalf("expected 3 members (empty, full, gas); got %d", len(members))
	}

	empty, full, gas := members[0], members[1], members[2]

	if empty.Sku != "GAS-13-E" || empty.SkuType != SkuTypeAsset || empty.StateAttr != VariantStateEmpty {
		t.Errorf("unexpected empty member: %s %s %s", empty.Sku, empty.SkuType, empty.StateAttr)
	}
	if full.Sku != "GAS-13-F" || full.SkuType != SkuTypeAsset || full.StateAttr != VariantStateFull {
		t.Errorf("unexpected full member: %s %s %s", full.Sku, full.SkuType, full.StateAttr)
	}
	if gas.Sku != "GAS-13-G" || gas.SkuType != SkuTypeConsumable || gas.StateAttr != VariantStateNone {
		t.Errorf("unexpected gas member: %s %s %s", gas.Sku, gas.SkuType, gas.StateAttr)
	}

	for _, m := range []Variant{empty, full} {
		if m.GrossWeightKg == nil || !m.GrossWeightKg.Equal(decimal.NewFromInt(28)) {
			t.Errorf("%s: expected gross 28", m.Sku)
		}
	}
	if gas.GrossWeightKg != nil {
		t.Error("gas content carries no weight fields")
	}
	if !gas.SalesPrice.Equal(decimal.NewFromInt(9500)) {
		t.Errorf("gas member should carry the gas price; got %s", gas.SalesPrice.String())
	}
	if gas.IsStockItem == nil || *gas.IsStockItem {
		t.Error("gas content is not a stock item")
	}
}

func TestLineWeightKg(t *testing.T) {
	gross := decimal.NewFromInt(28)
	variant := &Variant{GrossWeightKg: &gross}

	if got := lineWeightKg(variant, decimal.NewFromInt(5)); !got.Equal(decimal.NewFromInt(140)) {
		t.Fatalf("expected 140; got %s", got.String())
	}
	if got := lineWeightKg(&Variant{}, decimal.NewFromInt(5)); !got.IsZero() {
		t.Fatalf("weightless variant should count as zero; got %s", got.String())
	}
}
