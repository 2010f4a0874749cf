package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-booking/middlewares"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
)

type BookingController struct {
	Bookings *services.BookingService
	Locks    *services.LockManager
}

func NewBookingController(bookings *services.BookingService, locks *services.LockManager) *BookingController {
	return &BookingController{Bookings: bookings, Locks: locks}
}

type slotBody struct {
	RestaurantID uint   `json:"restaurantId"`
	TableID      uint   `json:"tableId"`
	Date         string `json:"date"`
	StartTime    string `json:"startTime"`
}

// CreateBooking -> POST /bookings
func (bc *BookingController) CreateBooking(c *gin.Context) {
	var req services.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	booking, err := bc.Bookings.CreateBooking(c.Request.Context(), req, middlewares.UserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Booking confirmed", gin.H{"booking": booking})
}

// GetBookings -> GET /bookings, either the availability of a slot or the
// caller's own history.
func (bc *BookingController) GetBookings(c *gin.Context) {
	q := services.BookingQuery{
		UserID:    middlewares.UserID(c),
		Date:      c.Query("date"),
		StartTime: c.Query("startTime"),
	}
	if v := c.Query("restaurantId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid restaurantId"))
			return
		}
		q.RestaurantID = uint(id)
	}
	q.Page, _ = strconv.Atoi(c.Query("page"))
	q.Limit, _ = strconv.Atoi(c.Query("limit"))

	if !q.IsAvailability() && q.UserID == 0 {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("Authorization header missing"))
		return
	}

	list, err := bc.Bookings.GetBookings(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of bookings", list)
}

// CancelBooking -> DELETE /bookings/:id
func (bc *BookingController) CancelBooking(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	booking, err := bc.Bookings.CancelBooking(c.Request.Context(), id, middlewares.UserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Booking cancelled", gin.H{"booking": booking})
}

// LockTable -> POST /bookings/lock
func (bc *BookingController) LockTable(c *gin.Context) {
	var body slotBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	req, err := services.NewLockRequest(body.RestaurantID, body.TableID, body.Date, body.StartTime)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	lock, err := bc.Locks.Acquire(c.Request.Context(), req, middlewares.UserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table locked", gin.H{"lock": lock})
}

// UnlockTable -> POST /bookings/unlock. Unlocking a slot the caller does not
// hold is not an error.
func (bc *BookingController) UnlockTable(c *gin.Context) {
	var body slotBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	req, err := services.NewLockRequest(body.RestaurantID, body.TableID, body.Date, body.StartTime)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	released, err := bc.Locks.Release(c.Request.Context(), req.Key(), middlewares.UserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	message := "Table unlocked"
	if !released {
		message = "No lock held for this slot"
	}
	utils.RespondJSON(c, http.StatusOK, message, gin.H{"released": released})
}
