package httpserver

import (
	"errors"
	"net/http"

	"campusrunner/internal/cart"
	"campusrunner/internal/checkout"
	"campusrunner/internal/domain"
	ordersvc "campusrunner/internal/service/order"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *handlers) writeError(c *gin.Context, err error) {
	var (
		verr *domain.ValidationError
		terr *domain.TransitionError
		perr *domain.PartialOrderError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation_failed", "message": verr.Error(), "fields": verr.Fields})
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{
			"error":         "invalid_transition",
			"message":       terr.Reason,
			"currentStatus": terr.Current,
			"from":          terr.From,
			"to":            terr.To,
		})
	case errors.As(err, &perr):
		h.logger.Error("order created without items", zap.String("order_id", perr.OrderID), zap.Bool("compensated", perr.Compensated), zap.Error(perr.Err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":       "order_incomplete",
			"message":     perr.Error(),
			"orderId":     perr.OrderID,
			"orderNumber": perr.OrderNumber,
			"compensated": perr.Compensated,
		})
	case errors.Is(err, checkout.ErrSubmissionInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "submission_in_progress", "message": err.Error()})
	case errors.Is(err, ordersvc.ErrNotShopping):
		c.JSON(http.StatusConflict, gin.H{"error": "not_shopping", "message": err.Error()})
	case errors.Is(err, cart.ErrNotCustomItem):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not_custom_item", "message": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "resource not found"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not allowed for this user"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
}
