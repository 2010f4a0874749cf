package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-booking/middlewares"
	"github.com/yeremiapane/restaurant-booking/realtime"
	"github.com/yeremiapane/restaurant-booking/utils"
)

type RealtimeController struct {
	Hub *realtime.Hub
}

func NewRealtimeController(hub *realtime.Hub) *RealtimeController {
	return &RealtimeController{Hub: hub}
}

// ServeWS -> GET /ws. Anonymous connections may join public and table
// rooms; staff rooms need the token identity.
func (rc *RealtimeController) ServeWS(c *gin.Context) {
	var identity *realtime.Identity
	if uid := c.GetUint(middlewares.CtxUserID); uid != 0 {
		identity = &realtime.Identity{
			UserID:       uid,
			Role:         c.GetString(middlewares.CtxRole),
			RestaurantID: c.GetUint(middlewares.CtxRestaurantID),
		}
	}

	if err := rc.Hub.ServeWS(c.Writer, c.Request, identity); err != nil {
		utils.ErrorLogger.WithField("error", err).Warn("websocket upgrade failed")
		if !c.Writer.Written() {
			c.AbortWithStatus(http.StatusBadRequest)
		}
	}
}
