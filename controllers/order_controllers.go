package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-booking/middlewares"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

// PlaceOrder -> POST /orders/place
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	var req services.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order placed", gin.H{"order": order})
}

// UpdateOrderStatus -> PUT /orders/:orderId/status
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := parseUintParam(c, "orderId")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.UpdateOrderStatus(c.Request.Context(), c.GetUint(middlewares.CtxRestaurantID), orderID, body.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", gin.H{"order": order})
}

// FreeTable -> POST /orders/free-table
func (oc *OrderController) FreeTable(c *gin.Context) {
	var body struct {
		RestaurantID uint `json:"restaurantId"`
		TableID      uint `json:"tableId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if c.GetUint(middlewares.CtxRestaurantID) != body.RestaurantID {
		respondServiceError(c, fmt.Errorf("%w: not staff of this restaurant", services.ErrForbidden))
		return
	}

	table, err := oc.Orders.FreeTable(c.Request.Context(), body.RestaurantID, body.TableID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table freed", gin.H{"table": table})
}

// GetTableOrders -> GET /orders/:restaurantId/:tableId
func (oc *OrderController) GetTableOrders(c *gin.Context) {
	restaurantID, ok := parseUintParam(c, "restaurantId")
	if !ok {
		return
	}
	tableID, ok := parseUintParam(c, "tableId")
	if !ok {
		return
	}

	orders, err := oc.Orders.ActiveOrdersForTable(c.Request.Context(), restaurantID, tableID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active orders for table", orders)
}

// GetActiveOrders -> GET /orders/active/:restaurantId
func (oc *OrderController) GetActiveOrders(c *gin.Context) {
	restaurantID, ok := parseUintParam(c, "restaurantId")
	if !ok {
		return
	}

	orders, err := oc.Orders.ActiveOrdersForRestaurant(c.Request.Context(), restaurantID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active orders", orders)
}
