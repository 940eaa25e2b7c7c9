package httpserver

import (
	"net/http"

	"campusrunner/internal/domain"

	"github.com/gin-gonic/gin"
)

func (h *handlers) listCategories(c *gin.Context) {
	cats, err := h.CatalogSvc.Categories(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

func (h *handlers) listCategoryItems(c *gin.Context) {
	items, err := h.CatalogSvc.ItemsByCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if items == nil {
		items = []domain.CatalogItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *handlers) getItem(c *gin.Context) {
	item, err := h.CatalogSvc.Item(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
