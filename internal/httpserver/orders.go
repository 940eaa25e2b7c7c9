package httpserver

import (
	"net/http"

	"campusrunner/internal/domain"
	ordersvc "campusrunner/internal/service/order"

	"github.com/gin-gonic/gin"
)

type orderResponse struct {
	Order domain.Order         `json:"order"`
	Next  []domain.OrderStatus `json:"next"`
}

func (h *handlers) toOrderResponse(o domain.Order) orderResponse {
	next := h.OrderSvc.Next(o.Status)
	if next == nil {
		next = []domain.OrderStatus{}
	}
	return orderResponse{Order: o, Next: next}
}

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.OrderSvc.OrdersForActor(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *handlers) listAvailableOrders(c *gin.Context) {
	orders, err := h.OrderSvc.ListAvailable(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *handlers) getOrder(c *gin.Context) {
	o, err := h.OrderSvc.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toOrderResponse(*o))
}

func (h *handlers) transitionOrder(c *gin.Context) {
	var req ordersvc.TransitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.To == "" {
		h.writeError(c, domain.NewValidationError("to", "target status required"))
		return
	}
	res, err := h.OrderSvc.Transition(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) annotateOrderItem(c *gin.Context) {
	var req ordersvc.AnnotateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	o, err := h.OrderSvc.AnnotateItem(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("itemId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toOrderResponse(*o))
}
