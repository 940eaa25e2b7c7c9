package httpserver

import (
	"errors"
	"net/http"

	"campusrunner/internal/cart"
	"campusrunner/internal/domain"

	"github.com/gin-gonic/gin"
)

type cartResponse struct {
	Cart        domain.Cart `json:"cart"`
	ItemCount   int         `json:"itemCount"`
	CanCheckout bool        `json:"canCheckout"`
	SyncError   string      `json:"syncError,omitempty"`
}

type addItemRequest struct {
	CatalogItemID string `json:"catalogItemId"`
	Quantity      int    `json:"quantity"`
	Notes         string `json:"notes"`
}

type customItemRequest struct {
	Name        string `json:"name"`
	BudgetCents int64  `json:"budgetCents"`
	Notes       string `json:"notes"`
}

type updateLineRequest struct {
	Quantity *int    `json:"quantity"`
	Notes    *string `json:"notes"`
}

type deliveryRequest struct {
	DeliveryAddress     *string `json:"deliveryAddress"`
	SpecialInstructions *string `json:"specialInstructions"`
}

func toCartResponse(st *cart.Store) cartResponse {
	snap := st.Snapshot()
	resp := cartResponse{Cart: snap, ItemCount: snap.ItemCount(), CanCheckout: st.CanCheckout()}
	if err := st.Err(); err != nil {
		resp.SyncError = err.Error()
	}
	return resp
}

// store resolves the caller's cart, writing the error response itself on failure.
func (h *handlers) store(c *gin.Context) (*cart.Store, bool) {
	st, err := h.Carts.Get(c.Request.Context(), actorFrom(c).ID)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return st, true
}

func (h *handlers) getCart(c *gin.Context) {
	st, ok := h.store(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toCartResponse(st))
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.CatalogItemID == "" {
		h.writeError(c, domain.NewValidationError("catalogItemId", "catalog item required"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if _, err := h.Carts.AddCatalogItem(c.Request.Context(), actorFrom(c).ID, req.CatalogItemID, req.Quantity, req.Notes); err != nil {
		h.writeError(c, err)
		return
	}
	h.getCart(c)
}

func (h *handlers) addCustomItem(c *gin.Context) {
	var req customItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, ok := h.store(c)
	if !ok {
		return
	}
	line, err := st.AddCustomItem(req.Name, req.BudgetCents, req.Notes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lineItem": line, "cart": toCartResponse(st)})
}

func (h *handlers) updateCustomItem(c *gin.Context) {
	var req customItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, ok := h.store(c)
	if !ok {
		return
	}
	if err := st.UpdateCustomItem(c.Param("lineId"), req.Name, req.BudgetCents, req.Notes); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(st))
}

func (h *handlers) updateCartLine(c *gin.Context) {
	var req updateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == nil && req.Notes == nil {
		badRequest(c, errors.New("quantity or notes required"))
		return
	}
	st, ok := h.store(c)
	if !ok {
		return
	}
	lineID := c.Param("lineId")
	if req.Notes != nil {
		if err := st.UpdateNotes(lineID, *req.Notes); err != nil {
			h.writeError(c, err)
			return
		}
	}
	if req.Quantity != nil {
		st.UpdateQuantity(lineID, *req.Quantity)
	}
	c.JSON(http.StatusOK, toCartResponse(st))
}

func (h *handlers) removeCartLine(c *gin.Context) {
	st, ok := h.store(c)
	if !ok {
		return
	}
	st.RemoveItem(c.Param("lineId"))
	c.JSON(http.StatusOK, toCartResponse(st))
}

func (h *handlers) clearCart(c *gin.Context) {
	st, ok := h.store(c)
	if !ok {
		return
	}
	st.Clear()
	c.JSON(http.StatusOK, toCartResponse(st))
}

func (h *handlers) updateDelivery(c *gin.Context) {
	var req deliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, ok := h.store(c)
	if !ok {
		return
	}
	if req.DeliveryAddress != nil {
		st.UpdateDeliveryAddress(*req.DeliveryAddress)
	}
	if req.SpecialInstructions != nil {
		st.UpdateSpecialInstructions(*req.SpecialInstructions)
	}
	c.JSON(http.StatusOK, toCartResponse(st))
}
