package models

import (
	"log"

	"bitbucket.org/mmdatafocus/boekhouden_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Company{}, &User{},
		&Account{},
		&Customer{}, &Supplier{},
		&ItemGroup{}, &Item{},
		&CostCenter{},
		&JournalEntry{}, &JournalLine{},
		&SalesInvoice{}, &SalesInvoiceDetail{},
		&PurchaseInvoice{}, &PurchaseInvoiceDetail{},
		&PaymentEntry{},
		&LedgerMapping{}, &MemorialDirectionOverride{},
		&MutationCacheEntry{},
		&MigrationConnection{}, &MigrationRun{}, &MigrationError{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
