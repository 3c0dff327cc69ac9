package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aninnda/BikeShare-System-sub002/internal/auth0"
	"github.com/aninnda/BikeShare-System-sub002/internal/middleware"
)

type profileResponse struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	HasPayment bool   `json:"hasPayment"`
}

// syncProfileHandler copies the caller's Auth0 profile onto their customer
// record so invoices carry a name and email.
func (a *API) syncProfileHandler(c *gin.Context) {
	ctx, end := startSpan(c, "syncProfileHandler")
	defer end()

	logger := middleware.GetLogger(c)

	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || token == "" {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "Authentication required"})
		return
	}

	userID, _ := middleware.GetUserID(c)
	info, err := a.opts.Auth0.GetUserInfo(ctx, token)
	if err != nil {
		if errors.Is(err, auth0.ErrUserInfoFailed) {
			c.JSON(http.StatusBadGateway, errorResponse{Code: "PROFILE_UNAVAILABLE", Message: "failed to fetch profile"})
			return
		}
		writeError(c, err)
		return
	}
	if info.Sub != "" && info.Sub != userID {
		logger.WarnContext(ctx, "profile subject mismatch", "sub", info.Sub)
		c.JSON(http.StatusForbidden, errorResponse{Code: "FORBIDDEN", Message: "token does not belong to caller"})
		return
	}

	cust, err := a.opts.Customers.GetOrCreate(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := a.opts.Customers.UpdateProfile(ctx, userID, info.Email, info.DisplayName()); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		UserID:     userID,
		Email:      info.Email,
		Name:       info.DisplayName(),
		HasPayment: cust.StripeID.Valid,
	})
}
