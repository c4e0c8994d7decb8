package models

import (
	"encoding/json"
	"testing"
)

func TestCanTransitionDraft(t *testing.T) {
	for _, docType := range []DocType{DocTypeReceipt, DocTypeIssue, DocTypeTransfer, DocTypeConversion, DocTypeVehicleLoad, DocTypeVehicleUnload} {
		if !CanTransition(docType, DocStatusDraft, DocStatusConfirmed) {
			t.Errorf("%s: DRAFT -> CONFIRMED should be legal", docType)
		}
		if !CanTransition(docType, DocStatusDraft, DocStatusCancelled) {
			t.Errorf("%s: DRAFT -> CANCELLED should be legal", docType)
		}
		if CanTransition(docType, DocStatusDraft, DocStatusPosted) {
			t.Errorf("%s: DRAFT -> POSTED must not skip CONFIRMED", docType)
		}
	}
}

func TestCanTransitionConfirmed(t *testing.T) {
	// Non-transfer documents post directly.
	if !CanTransition(DocTypeReceipt, DocStatusConfirmed, DocStatusPosted) {
		t.Error("REC_FIL: CONFIRMED -> POSTED should be legal")
	}
	if CanTransition(DocTypeReceipt, DocStatusConfirmed, DocStatusInTransit) {
		t.Error("REC_FIL: CONFIRMED -> IN_TRANSIT is transfer-only")
	}

	// Transfers route through the transit leg instead.
	if CanTransition(DocTypeTransfer, DocStatusConfirmed, DocStatusPosted) {
		t.Error("XFER: CONFIRMED -> POSTED must go through IN_TRANSIT")
	}
	if !CanTransition(DocTypeTransfer, DocStatusConfirmed, DocStatusInTransit) {
		t.Error("XFER: CONFIRMED -> IN_TRANSIT should be legal")
	}

	// Any confirmed document can still be cancelled.
	for _, docType := range []DocType{DocTypeReceipt, DocTypeTransfer, DocTypeVehicleLoad} {
		if !CanTransition(docType, DocStatusConfirmed, DocStatusCancelled) {
			t.Errorf("%s: CONFIRMED -> CANCELLED should be legal", docType)
		}
	}
}

func TestCanTransitionInTransit(t *testing.T) {
	if !CanTransition(DocTypeTransfer, DocStatusInTransit, DocStatusReceived) {
		t.Error("XFER: IN_TRANSIT -> RECEIVED should be legal")
	}
	if !CanTransition(DocTypeTransfer, DocStatusInTransit, DocStatusCancelled) {
		t.Error("XFER: IN_TRANSIT -> CANCELLED should be legal")
	}
	if CanTransition(DocTypeReceipt, DocStatusInTransit, DocStatusReceived) {
		t.Error("REC_FIL: IN_TRANSIT states are transfer-only")
	}
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	terminals := []DocStatus{DocStatusPosted, DocStatusCancelled, DocStatusReceived}
	all := []DocStatus{DocStatusDraft, DocStatusConfirmed, DocStatusPosted, DocStatusCancelled, DocStatusInTransit, DocStatusReceived}
	for _, from := range terminals {
		if !from.Terminal() {
			t.Errorf("%s should report Terminal()", from)
		}
		for _, docType := range []DocType{DocTypeReceipt, DocTypeIssue, DocTypeTransfer, DocTypeConversion, DocTypeVehicleLoad, DocTypeVehicleUnload} {
			for _, to := range all {
				if CanTransition(docType, from, to) {
					t.Errorf("%s: %s -> %s must be illegal; %s is terminal", docType, from, to, from)
				}
			}
		}
	}
	for _, from := range []DocStatus{DocStatusDraft, DocStatusConfirmed, DocStatusInTransit} {
		if from.Terminal() {
			t.Errorf("%s must not report Terminal()", from)
		}
	}
}

func TestEnumJSONRejectsUnknownValues(t *testing.T) {
	var docType DocType
	if err := json.Unmarshal([]byte(`"SELL"`), &docType); err == nil {
		t.Error("unknown doc type should fail to unmarshal")
	}
	if err := json.Unmarshal([]byte(`"XFER"`), &docType); err != nil {
		t.Errorf("XFER should unmarshal: %v", err)
	}

	var status StockStatus
	if err := json.Unmarshal([]byte(`"somewhere"`), &status); err == nil {
		t.Error("unknown stock status should fail to unmarshal")
	}
	if err := json.Unmarshal([]byte(`"truck_stock"`), &status); err != nil {
		t.Errorf("truck_stock should unmarshal: %v", err)
	}

	var skuType SkuType
	if err := json.Unmarshal([]byte(`"GAS"`), &skuType); err == nil {
		t.Error("unknown sku type should fail to unmarshal")
	}
}

func TestSkuTypeValid(t *testing.T) {
	for _, st := range []SkuType{SkuTypeAsset, SkuTypeConsumable, SkuTypeDeposit, SkuTypeBundle} {
		if !st.Valid() {
			t.Errorf("%s should be valid", st)
		}
	}
	if SkuType("GAS").Valid() {
		t.Error("GAS is not a sku type")
	}
	if SkuType("").Valid() {
		t.Error("empty sku type should not be valid")
	}
}

func TestAllStockStatuses(t *testing.T) {
	statuses := AllStockStatuses()
	if len(statuses) != 4 {
		t.Fatalf("expected 4 stock statuses; got %d", len(statuses))
	}
	for _, s := range statuses {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
}
