package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/realtime"
)

// StaffUpdateEvent is the payload of staff_update.
type StaffUpdateEvent struct {
	UserID   uint   `json:"userId"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

type RestaurantService struct {
	db          *gorm.DB
	broadcaster realtime.Broadcaster
}

func NewRestaurantService(db *gorm.DB, broadcaster realtime.Broadcaster) *RestaurantService {
	return &RestaurantService{db: db, broadcaster: broadcaster}
}

// ListTables returns the table grid of a restaurant ordered by id.
func (s *RestaurantService) ListTables(ctx context.Context, restaurantID uint) ([]models.Table, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Restaurant{}).Where("id = ?", restaurantID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, notFoundf("restaurant not found")
	}

	tables := []models.Table{}
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("id asc").
		Find(&tables).Error
	return tables, err
}

// SetWaiterActive puts a staff member on or off shift. Only active waiters
// are considered when a new table needs one.
func (s *RestaurantService) SetWaiterActive(ctx context.Context, restaurantID, userID uint, active bool) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("id = ? AND restaurant_id = ?", userID, restaurantID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("staff member not found")
		}
		return nil, err
	}
	if !models.IsStaffRole(user.Role) {
		return nil, validationf("user %d is not staff", userID)
	}

	if err := s.db.WithContext(ctx).Model(&user).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("update staff status: %w", err)
	}
	user.IsActive = active

	emit(s.broadcaster, realtime.StaffRoom(restaurantID), realtime.EventStaffUpdate, StaffUpdateEvent{
		UserID:   user.ID,
		Name:     user.Name,
		Role:     user.Role,
		IsActive: user.IsActive,
	})
	return &user, nil
}
