package middlewares

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
)

// RequireRoles lets the request through when the token role is one of roles.
// Must run after AuthMiddleware.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get(CtxRole)
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}

		for _, role := range roles {
			if userRole == role {
				c.Next()
				return
			}
		}
		utils.RespondError(c, http.StatusForbidden, fmt.Errorf("%s access required", roles))
		c.Abort()
	}
}

// RequireStaff accepts any staff role.
func RequireStaff() gin.HandlerFunc {
	return RequireRoles(models.RoleWaiter, models.RoleKitchen, models.RoleManager)
}

// SameRestaurant rejects staff acting on a restaurant other than their own.
// param names the route parameter holding the restaurant id.
func SameRestaurant(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param(param), 10, 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s", param))
			c.Abort()
			return
		}
		if c.GetUint(CtxRestaurantID) != uint(id) {
			utils.RespondError(c, http.StatusForbidden, fmt.Errorf("not staff of this restaurant"))
			c.Abort()
			return
		}
		c.Next()
	}
}
