package httpserver

import (
	"net/http"

	"campusrunner/internal/domain"
	"campusrunner/internal/formcache"

	"github.com/gin-gonic/gin"
)

type checkoutRequest struct {
	Delivery      domain.DeliveryInfo  `json:"delivery"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

func (h *handlers) getDraft(c *gin.Context) {
	d, ok, err := h.Drafts.Load(c.Request.Context(), actorFrom(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !ok {
		h.writeError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handlers) saveDraft(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d := formcache.Draft{Delivery: req.Delivery, PaymentMethod: req.PaymentMethod, UpdatedAt: h.Now()}
	if err := h.Drafts.Save(c.Request.Context(), actorFrom(c).ID, d); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handlers) deleteDraft(c *gin.Context) {
	if err := h.Drafts.Delete(c.Request.Context(), actorFrom(c).ID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// submitCheckout fills blank request fields from the saved draft before submitting.
func (h *handlers) submitCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	actor := actorFrom(c)

	if draft, ok, err := h.Drafts.Load(ctx, actor.ID); err == nil && ok {
		req.Delivery = mergeDelivery(req.Delivery, draft.Delivery)
		if req.PaymentMethod == "" {
			req.PaymentMethod = draft.PaymentMethod
		}
	}

	st, ok := h.store(c)
	if !ok {
		return
	}
	res, err := h.Checkout.Submit(ctx, actor, st, req.Delivery, req.PaymentMethod)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func mergeDelivery(in, draft domain.DeliveryInfo) domain.DeliveryInfo {
	if in.Address == "" {
		in.Address = draft.Address
	}
	if in.Hall == "" {
		in.Hall = draft.Hall
	}
	if in.Room == "" {
		in.Room = draft.Room
	}
	if in.Phone == "" {
		in.Phone = draft.Phone
	}
	return in
}
