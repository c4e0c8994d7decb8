package models

import (
	"log"

	"bitbucket.org/mmgasdepot/depot_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{}, &Variant{},
		&Warehouse{}, &Vehicle{},
		&StockLevel{}, &StockMovement{}, &Reservation{},
		&StockDocument{}, &StockDocumentLine{},
		&AuditEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
