package config

import (
	"os"
	"strings"
)

// EnforceVehicleCapacity gates the truck capacity check on vehicle loading.
// Some depots run mixed fleets with unverified capacity data; they can opt out
// until the fleet master data is cleaned up.
//
// Set via env:
// - ENFORCE_VEHICLE_CAPACITY=true (default true; "false"/"0"/"no" disables)
func EnforceVehicleCapacity() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ENFORCE_VEHICLE_CAPACITY")))
	if v == "" {
		return true
	}
	return !(v == "0" || v == "false" || v == "no" || v == "n")
}

// AuditOutboxEnabled controls whether ledger mutations and document transitions
// write audit outbox rows. Disabling it skips the write entirely (dev only);
// it never changes commit decisions.
//
// Set via env:
// - AUDIT_OUTBOX_ENABLED=false to disable (default enabled)
func AuditOutboxEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AUDIT_OUTBOX_ENABLED")))
	if v == "" {
		return true
	}
	return !(v == "0" || v == "false" || v == "no" || v == "n")
}
