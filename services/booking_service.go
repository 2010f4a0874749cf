package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/realtime"
	"github.com/yeremiapane/restaurant-booking/utils"
)

// capacityOverflow is how many guests beyond a table's capacity a booking may
// still seat.
const capacityOverflow = 2

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type BookingRequest struct {
	RestaurantID uint   `json:"restaurantId"`
	TableID      uint   `json:"tableId"`
	Date         string `json:"date"`
	StartTime    string `json:"startTime"`
	GuestCount   int    `json:"guestCount"`
	Notes        string `json:"notes"`
}

// BookingQuery selects either the availability view (RestaurantID, Date and
// StartTime set) or the caller's own history.
type BookingQuery struct {
	UserID       uint
	RestaurantID uint
	Date         string
	StartTime    string
	Page         int
	Limit        int
}

func (q BookingQuery) IsAvailability() bool {
	return q.RestaurantID != 0 || q.Date != "" || q.StartTime != ""
}

// SlotEntry is one row of a booking listing: a booking or, in availability
// views, a live lock with Status "locked".
type SlotEntry struct {
	ID           uint       `json:"id,omitempty"`
	RestaurantID uint       `json:"restaurantId"`
	TableID      uint       `json:"tableId"`
	UserID       uint       `json:"userId,omitempty"`
	Date         string     `json:"date"`
	StartTime    string     `json:"startTime"`
	EndTime      string     `json:"endTime"`
	GuestCount   int        `json:"guestCount,omitempty"`
	Status       string     `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	LockedBy     uint       `json:"lockedBy,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

const StatusLocked = "locked"

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type BookingList struct {
	Bookings   []SlotEntry `json:"bookings"`
	Pagination *Pagination `json:"pagination"`
}

// SlotEvent is the payload of table:available and table:unavailable.
type SlotEvent struct {
	TableID   uint   `json:"tableId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	BookingID uint   `json:"bookingId"`
}

// BookingService turns a held slot into a confirmed booking.
type BookingService struct {
	db          *gorm.DB
	locks       *LockManager
	broadcaster realtime.Broadcaster
	Location    *time.Location
	Now         func() time.Time
}

func NewBookingService(db *gorm.DB, locks *LockManager, broadcaster realtime.Broadcaster, loc *time.Location) *BookingService {
	if loc == nil {
		loc = time.Local
	}
	return &BookingService{db: db, locks: locks, broadcaster: broadcaster, Location: loc, Now: time.Now}
}

func (s *BookingService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// CreateBooking validates the request, takes the slot lock, re-checks
// confirmed bookings for overlap and stores a confirmed booking. The lock is
// released on every path once acquired.
func (s *BookingService) CreateBooking(ctx context.Context, req BookingRequest, userID uint) (*models.Booking, error) {
	endTime, err := s.validate(req, userID)
	if err != nil {
		return nil, err
	}

	if err := s.checkTable(ctx, req); err != nil {
		return nil, err
	}

	lock, err := s.locks.Acquire(ctx, LockRequest{
		RestaurantID: req.RestaurantID,
		TableID:      req.TableID,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      endTime,
	}, userID)
	if err != nil {
		return nil, err
	}

	key := lock.Key()
	released := false
	defer func() {
		if !released {
			s.releaseQuietly(ctx, key, userID)
		}
	}()

	booking := &models.Booking{
		RestaurantID: req.RestaurantID,
		TableID:      req.TableID,
		UserID:       userID,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      endTime,
		GuestCount:   req.GuestCount,
		Status:       models.BookingConfirmed,
		Notes:        strings.TrimSpace(req.Notes),
	}
	for attempt := 1; attempt <= maxTableWriteAttempts; attempt++ {
		err = s.confirmOnce(ctx, booking)
		if !errors.Is(err, errStaleTable) {
			break
		}
		booking.ID = 0
	}
	if errors.Is(err, errStaleTable) {
		return nil, &ConflictError{Reason: ConflictStale, Message: "table is being updated, please retry"}
	}
	if err != nil {
		return nil, err
	}

	s.releaseQuietly(ctx, key, userID)
	released = true

	emit(s.broadcaster, realtime.StaffRoom(booking.RestaurantID), realtime.EventBookingCreated, booking)
	emit(s.broadcaster, realtime.PublicRoom(booking.RestaurantID), realtime.EventTableUnavailable, slotEvent(booking))

	utils.InfoLogger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"restaurant": booking.RestaurantID,
		"table":      booking.TableID,
		"date":       booking.Date,
		"start":      booking.StartTime,
	}).Info("booking confirmed")
	return booking, nil
}

// confirmOnce re-checks overlap and stores the booking in one transaction.
// Locks are per start time, so two overlapping slots with different starts
// serialize on the table version instead.
func (s *BookingService) confirmOnce(ctx context.Context, booking *models.Booking) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.Select("id", "version").First(&table, booking.TableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("table not found")
			}
			return err
		}

		existing, err := findOverlap(tx, booking.RestaurantID, booking.TableID, booking.Date, booking.StartTime, booking.EndTime)
		if err != nil {
			return err
		}
		if existing != nil {
			return &ConflictError{
				Reason:   ConflictOverlap,
				Message:  fmt.Sprintf("table already booked from %s to %s", existing.StartTime, existing.EndTime),
				Existing: existing,
			}
		}

		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("save booking: %w", err)
		}

		res := tx.Model(&models.Table{}).
			Where("id = ? AND version = ?", table.ID, table.Version).
			Update("version", gorm.Expr("version + 1"))
		if res.Error != nil {
			return fmt.Errorf("claim table: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errStaleTable
		}
		return nil
	})
}

func (s *BookingService) validate(req BookingRequest, userID uint) (string, error) {
	switch {
	case userID == 0:
		return "", validationf("user is required")
	case req.RestaurantID == 0:
		return "", validationf("restaurantId is required")
	case req.TableID == 0:
		return "", validationf("tableId is required")
	case req.Date == "":
		return "", validationf("date is required")
	case req.StartTime == "":
		return "", validationf("startTime is required")
	case req.GuestCount < 1:
		return "", validationf("guestCount must be at least 1")
	}

	endTime, err := slotEnd(req.StartTime)
	if err != nil {
		return "", validationf("%v", err)
	}
	start, err := time.ParseInLocation(dateLayout+" "+clockLayout, req.Date+" "+req.StartTime, s.Location)
	if err != nil {
		return "", validationf("date must be YYYY-MM-DD")
	}
	if start.Before(s.now()) {
		return "", validationf("booking time is in the past")
	}
	return endTime, nil
}

func (s *BookingService) checkTable(ctx context.Context, req BookingRequest) error {
	var restaurant models.Restaurant
	if err := s.db.WithContext(ctx).First(&restaurant, req.RestaurantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundf("restaurant not found")
		}
		return err
	}
	if !restaurant.AllowBooking {
		return validationf("restaurant does not accept bookings")
	}

	var table models.Table
	err := s.db.WithContext(ctx).
		Where("id = ? AND restaurant_id = ?", req.TableID, req.RestaurantID).
		First(&table).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundf("table not found")
		}
		return err
	}
	if req.GuestCount > table.Capacity+capacityOverflow {
		return validationf("guest count %d exceeds table capacity %d", req.GuestCount, table.Capacity)
	}
	return nil
}

// findOverlap returns the first confirmed or grace booking on the table that
// intersects [startTime, endTime).
func findOverlap(tx *gorm.DB, restaurantID, tableID uint, date, startTime, endTime string) (*Interval, error) {
	start, end, err := span(startTime, endTime)
	if err != nil {
		return nil, validationf("%v", err)
	}

	var existing []models.Booking
	err = tx.
		Where("restaurant_id = ? AND table_id = ? AND date = ? AND status IN ?",
			restaurantID, tableID, date, models.BlockingBookingStatuses).
		Order("start_time asc").
		Find(&existing).Error
	if err != nil {
		return nil, err
	}

	for _, b := range existing {
		bs, be, err := span(b.StartTime, b.EndTime)
		if err != nil {
			continue
		}
		if overlaps(start, end, bs, be) {
			return &Interval{BookingID: b.ID, Date: b.Date, StartTime: b.StartTime, EndTime: b.EndTime}, nil
		}
	}
	return nil, nil
}

func (s *BookingService) releaseQuietly(ctx context.Context, key models.SlotKey, userID uint) {
	if _, err := s.locks.Release(context.WithoutCancel(ctx), key, userID); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"restaurant": key.RestaurantID,
			"table":      key.TableID,
			"date":       key.Date,
			"start":      key.StartTime,
			"error":      err,
		}).Error("lock cleanup failed")
	}
}

// CancelBooking lets the owner cancel a booking that still holds or awaits
// its slot. Cancelling twice is a no-op.
func (s *BookingService) CancelBooking(ctx context.Context, id, userID uint) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("booking not found")
		}
		return nil, err
	}
	if booking.UserID != userID {
		return nil, fmt.Errorf("%w: booking belongs to another user", ErrForbidden)
	}
	switch booking.Status {
	case models.BookingCancelled:
		return &booking, nil
	case models.BookingPending, models.BookingConfirmed, models.BookingGrace:
	default:
		return nil, validationf("a %s booking cannot be cancelled", booking.Status)
	}

	if err := s.db.WithContext(ctx).Model(&booking).Update("status", models.BookingCancelled).Error; err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	booking.Status = models.BookingCancelled

	emit(s.broadcaster, realtime.StaffRoom(booking.RestaurantID), realtime.EventBookingCancelled, &booking)
	emit(s.broadcaster, realtime.PublicRoom(booking.RestaurantID), realtime.EventTableAvailable, slotEvent(&booking))
	return &booking, nil
}

// GetBookings serves both the availability grid and the user's history.
func (s *BookingService) GetBookings(ctx context.Context, q BookingQuery) (*BookingList, error) {
	if q.IsAvailability() {
		return s.availability(ctx, q)
	}
	return s.history(ctx, q)
}

func (s *BookingService) availability(ctx context.Context, q BookingQuery) (*BookingList, error) {
	if q.RestaurantID == 0 || q.Date == "" || q.StartTime == "" {
		return nil, validationf("restaurantId, date and startTime are required for availability")
	}
	if _, err := time.Parse(dateLayout, q.Date); err != nil {
		return nil, validationf("date must be YYYY-MM-DD")
	}
	endTime, err := slotEnd(q.StartTime)
	if err != nil {
		return nil, validationf("%v", err)
	}
	start, end, _ := span(q.StartTime, endTime)

	var bookings []models.Booking
	err = s.db.WithContext(ctx).
		Where("restaurant_id = ? AND date = ? AND status IN ?", q.RestaurantID, q.Date, models.BlockingBookingStatuses).
		Order("table_id asc, start_time asc").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}

	entries := make([]SlotEntry, 0, len(bookings))
	for i := range bookings {
		bs, be, err := span(bookings[i].StartTime, bookings[i].EndTime)
		if err != nil || !overlaps(start, end, bs, be) {
			continue
		}
		entries = append(entries, entryFromBooking(&bookings[i]))
	}

	locks, err := s.locks.LiveLocks(ctx, q.RestaurantID, q.Date, q.StartTime)
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	for _, l := range locks {
		expires := l.ExpiresAt
		entries = append(entries, SlotEntry{
			RestaurantID: l.RestaurantID,
			TableID:      l.TableID,
			Date:         l.Date,
			StartTime:    l.StartTime,
			EndTime:      l.EndTime,
			Status:       StatusLocked,
			LockedBy:     l.LockedBy,
			ExpiresAt:    &expires,
		})
	}
	return &BookingList{Bookings: entries}, nil
}

func (s *BookingService) history(ctx context.Context, q BookingQuery) (*BookingList, error) {
	if q.UserID == 0 {
		return nil, validationf("user is required")
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	base := s.db.WithContext(ctx).Model(&models.Booking{}).Where("user_id = ?", q.UserID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Where("user_id = ?", q.UserID).
		Order("created_at desc, id desc").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}

	entries := make([]SlotEntry, 0, len(bookings))
	for i := range bookings {
		entries = append(entries, entryFromBooking(&bookings[i]))
	}
	return &BookingList{
		Bookings: entries,
		Pagination: &Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

func entryFromBooking(b *models.Booking) SlotEntry {
	created := b.CreatedAt
	return SlotEntry{
		ID:           b.ID,
		RestaurantID: b.RestaurantID,
		TableID:      b.TableID,
		UserID:       b.UserID,
		Date:         b.Date,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		GuestCount:   b.GuestCount,
		Status:       b.Status,
		Notes:        b.Notes,
		CreatedAt:    &created,
	}
}

func slotEvent(b *models.Booking) SlotEvent {
	return SlotEvent{
		TableID:   b.TableID,
		Date:      b.Date,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		BookingID: b.ID,
	}
}
