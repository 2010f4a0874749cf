package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-booking/config"
	"github.com/yeremiapane/restaurant-booking/controllers"
	"github.com/yeremiapane/restaurant-booking/middlewares"
	"github.com/yeremiapane/restaurant-booking/models"
)

// Controllers bundles the handlers mounted by SetupRouter.
type Controllers struct {
	Bookings *controllers.BookingController
	Orders   *controllers.OrderController
	Tables   *controllers.TableController
	Realtime *controllers.RealtimeController
}

func SetupRouter(cfg config.Config, ctl Controllers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())

	// Apply security middlewares
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.CORSOrigin))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// websocket sits outside the rate limiter; connections are long lived
	r.GET("/ws", middlewares.WebSocketAuthMiddleware(), ctl.Realtime.ServeWS)

	limiter := middlewares.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	api := r.Group("/")
	api.Use(limiter.RateLimit())

	bookings := api.Group("/bookings")
	{
		bookings.GET("", middlewares.OptionalAuth(), ctl.Bookings.GetBookings)
		bookings.POST("", middlewares.AuthMiddleware(), ctl.Bookings.CreateBooking)
		bookings.DELETE("/:id", middlewares.AuthMiddleware(), ctl.Bookings.CancelBooking)

		locks := bookings.Group("")
		locks.Use(middlewares.AuthMiddleware(), middlewares.NewStrictRateLimiter())
		locks.POST("/lock", ctl.Bookings.LockTable)
		locks.POST("/unlock", ctl.Bookings.UnlockTable)
	}

	orders := api.Group("/orders")
	{
		// customer devices at the table
		orders.POST("/place", ctl.Orders.PlaceOrder)
		orders.GET("/:restaurantId/:tableId", ctl.Orders.GetTableOrders)

		staff := orders.Group("")
		staff.Use(middlewares.AuthMiddleware(), middlewares.RequireStaff())
		staff.PUT("/:orderId/status", ctl.Orders.UpdateOrderStatus)
		staff.POST("/free-table", ctl.Orders.FreeTable)
		staff.GET("/active/:restaurantId", middlewares.SameRestaurant("restaurantId"), ctl.Orders.GetActiveOrders)
	}

	restaurants := api.Group("/restaurants/:restaurantId")
	{
		restaurants.GET("/tables", ctl.Tables.GetAllTables)
		restaurants.PATCH("/staff/:userId/active",
			middlewares.AuthMiddleware(),
			middlewares.RequireRoles(models.RoleManager),
			middlewares.SameRestaurant("restaurantId"),
			ctl.Tables.UpdateStaffActive)
	}

	return r
}
