package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
)

type TableController struct {
	Restaurants *services.RestaurantService
}

func NewTableController(restaurants *services.RestaurantService) *TableController {
	return &TableController{Restaurants: restaurants}
}

// GetAllTables -> GET /restaurants/:restaurantId/tables
func (tc *TableController) GetAllTables(c *gin.Context) {
	restaurantID, ok := parseUintParam(c, "restaurantId")
	if !ok {
		return
	}

	tables, err := tc.Restaurants.ListTables(c.Request.Context(), restaurantID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// UpdateStaffActive -> PATCH /restaurants/:restaurantId/staff/:userId/active
func (tc *TableController) UpdateStaffActive(c *gin.Context) {
	restaurantID, ok := parseUintParam(c, "restaurantId")
	if !ok {
		return
	}
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	var body struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := tc.Restaurants.SetWaiterActive(c.Request.Context(), restaurantID, userID, *body.IsActive)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.InfoLogger.Printf("Staff %d of restaurant %d active=%t", user.ID, restaurantID, user.IsActive)
	utils.RespondJSON(c, http.StatusOK, "Staff status updated", user)
}
