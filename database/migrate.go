package database

import (
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema, including the unique slot index
// that backs booking locks.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Restaurant{},
		&models.Table{},
		&models.User{},
		&models.BookingLock{},
		&models.Booking{},
		&models.Order{},
		&models.OrderItem{},
	)
	if err != nil {
		return err
	}

	if !db.Migrator().HasIndex(&models.BookingLock{}, "idx_booking_lock_slot") {
		if err := db.Migrator().CreateIndex(&models.BookingLock{}, "idx_booking_lock_slot"); err != nil {
			return err
		}
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}
