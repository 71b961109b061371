package models

import (
	"log"

	"github.com/mmdatafocus/indicator_monitor/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Indicator{},
		&NonConformity{},
		&FinancialTransaction{},
		&AdministrativeDeviation{},
		&User{},
	)
}
