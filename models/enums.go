package models

import (
	"encoding/json"
	"errors"
)

// SkuType classifies a variant in the atomic SKU model: the physical unit, the
// consumable content, the deposit liability and the sellable bundle are tracked
// as separate linked variants sharing a product.
type SkuType string

const (
	SkuTypeAsset      SkuType = "ASSET"
	SkuTypeConsumable SkuType = "CONSUMABLE"
	SkuTypeDeposit    SkuType = "DEPOSIT"
	SkuTypeBundle     SkuType = "BUNDLE"
)

func (t SkuType) Valid() bool {
	switch t {
	case SkuTypeAsset, SkuTypeConsumable, SkuTypeDeposit, SkuTypeBundle:
		return true
	}
	return false
}

func (t *SkuType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("sku type must be string")
	}
	v := SkuType(str)
	if !v.Valid() {
		return errors.New("invalid sku type")
	}
	*t = v
	return nil
}

// VariantState marks the fill state of a physical unit. Empty string means the
// variant has no fill state (gas content, deposit, bundle).
type VariantState string

const (
	VariantStateEmpty VariantState = "EMPTY"
	VariantStateFull  VariantState = "FULL"
	VariantStateNone  VariantState = ""
)

func (s *VariantState) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("variant state must be string")
	}
	switch str {
	case "EMPTY":
		*s = VariantStateEmpty
	case "FULL":
		*s = VariantStateFull
	case "":
		*s = VariantStateNone
	default:
		return errors.New("invalid variant state")
	}
	return nil
}

// StockStatus is the bucket a quantity sits in at a warehouse.
type StockStatus string

const (
	StockStatusOnHand     StockStatus = "on_hand"
	StockStatusInTransit  StockStatus = "in_transit"
	StockStatusTruckStock StockStatus = "truck_stock"
	StockStatusQuarantine StockStatus = "quarantine"
)

func AllStockStatuses() []StockStatus {
	return []StockStatus{StockStatusOnHand, StockStatusInTransit, StockStatusTruckStock, StockStatusQuarantine}
}

func (s StockStatus) Valid() bool {
	switch s {
	case StockStatusOnHand, StockStatusInTransit, StockStatusTruckStock, StockStatusQuarantine:
		return true
	}
	return false
}

func (s *StockStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("stock status must be string")
	}
	v := StockStatus(str)
	if !v.Valid() {
		return errors.New("invalid stock status")
	}
	*s = v
	return nil
}

// DocType determines which ledger rows a posted document touches and how.
type DocType string

const (
	DocTypeReceipt       DocType = "REC_FIL"
	DocTypeIssue         DocType = "ISS_FIL"
	DocTypeTransfer      DocType = "XFER"
	DocTypeConversion    DocType = "CONV_FIL"
	DocTypeVehicleLoad   DocType = "LOAD_MOB"
	DocTypeVehicleUnload DocType = "UNLD_MOB"
)

func (t DocType) Valid() bool {
	switch t {
	case DocTypeReceipt, DocTypeIssue, DocTypeTransfer, DocTypeConversion, DocTypeVehicleLoad, DocTypeVehicleUnload:
		return true
	}
	return false
}

func (t *DocType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("doc type must be string")
	}
	v := DocType(str)
	if !v.Valid() {
		return errors.New("invalid doc type")
	}
	*t = v
	return nil
}

// DocStatus is the lifecycle state of a stock document.
type DocStatus string

const (
	DocStatusDraft     DocStatus = "DRAFT"
	DocStatusConfirmed DocStatus = "CONFIRMED"
	DocStatusPosted    DocStatus = "POSTED"
	DocStatusCancelled DocStatus = "CANCELLED"
	DocStatusInTransit DocStatus = "IN_TRANSIT"
	DocStatusReceived  DocStatus = "RECEIVED"
)

func (s DocStatus) Valid() bool {
	switch s {
	case DocStatusDraft, DocStatusConfirmed, DocStatusPosted, DocStatusCancelled, DocStatusInTransit, DocStatusReceived:
		return true
	}
	return false
}

func (s *DocStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("doc status must be string")
	}
	v := DocStatus(str)
	if !v.Valid() {
		return errors.New("invalid doc status")
	}
	*s = v
	return nil
}

// Terminal reports whether no further transition may leave the status.
func (s DocStatus) Terminal() bool {
	switch s {
	case DocStatusPosted, DocStatusCancelled, DocStatusReceived:
		return true
	}
	return false
}

// CanTransition is the single source of truth for document status legality.
// Transfers take Confirmed -> InTransit -> Received; every other type takes
// Confirmed -> Posted. Cancellation is allowed from Draft, Confirmed and
// (for transfers) InTransit.
func CanTransition(docType DocType, from, to DocStatus) bool {
	isTransfer := docType == DocTypeTransfer
	switch from {
	case DocStatusDraft:
		return to == DocStatusConfirmed || to == DocStatusCancelled
	case DocStatusConfirmed:
		if to == DocStatusCancelled {
			return true
		}
		if isTransfer {
			return to == DocStatusInTransit
		}
		return to == DocStatusPosted
	case DocStatusInTransit:
		return isTransfer && (to == DocStatusReceived || to == DocStatusCancelled)
	}
	return false
}

// Audit event vocabulary. The audit service consumes these; nothing in the
// core branches on them.

type AuditAction string

const (
	AuditActionCreate       AuditAction = "CREATE"
	AuditActionUpdate       AuditAction = "UPDATE"
	AuditActionDelete       AuditAction = "DELETE"
	AuditActionLedgerAdjust AuditAction = "LEDGER_ADJUST"
	AuditActionReserve      AuditAction = "RESERVE"
	AuditActionRelease      AuditAction = "RELEASE"
	AuditActionDocStatus    AuditAction = "DOC_STATUS"
)

type AuditSeverity string

const (
	AuditSeverityInfo     AuditSeverity = "INFO"
	AuditSeverityWarning  AuditSeverity = "WARNING"
	AuditSeverityCritical AuditSeverity = "CRITICAL"
)

// Outbox publish statuses (audit dispatcher).
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
