package handlers

import (
	"github.com/gin-gonic/gin"

	"publica/internal/domain/cursor"
	"publica/internal/domain/item"
)

// ItemHandler serves the generic item routes for every registered model.
type ItemHandler struct {
	*BaseHandler
	service *item.Service
}

// NewItemHandler creates an item handler.
func NewItemHandler(base *BaseHandler, service *item.Service) *ItemHandler {
	return &ItemHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the item routes on a model-scoped group.
func (h *ItemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:model", h.Index)
	rg.POST("/:model", h.Create)
	rg.GET("/:model/:id", h.Show)
	rg.GET("/:model/:id/raw", h.Raw)
	rg.PUT("/:model/:id", h.Replace)
	rg.PATCH("/:model/:id", h.Update)
	rg.DELETE("/:model/:id", h.Delete)
}

// Index renders one page of items. Pagination state arrives in the cursor
// wire fields and is echoed back inside the tree.
func (h *ItemHandler) Index(c *gin.Context) {
	cur, err := cursor.FromValues(c.Request.URL.Query())
	if err != nil {
		h.Error(c, err)
		return
	}
	if sort := c.Query("_sort"); sort != "" {
		cur.Sort = sort
	}
	tree, err := h.service.Find(c.Request.Context(), c.Param("model"), cur)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, tree)
}

// Show renders a single item.
func (h *ItemHandler) Show(c *gin.Context) {
	tree, err := h.service.Get(c.Request.Context(), c.Param("model"), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, tree)
}

// Raw returns the stored document unmapped, for edit forms.
func (h *ItemHandler) Raw(c *gin.Context) {
	rec, err := h.service.Raw(c.Request.Context(), c.Param("model"), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// Create validates and stores a new item.
func (h *ItemHandler) Create(c *gin.Context) {
	var doc map[string]any
	if !h.BindJSON(c, &doc) {
		return
	}
	report, err := h.service.Create(c.Request.Context(), c.Param("model"), doc)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, report)
}

// Replace overwrites a whole item.
func (h *ItemHandler) Replace(c *gin.Context) {
	var doc map[string]any
	if !h.BindJSON(c, &doc) {
		return
	}
	report, err := h.service.Replace(c.Request.Context(), c.Param("model"), c.Param("id"), doc)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// Update applies only the changed fields.
func (h *ItemHandler) Update(c *gin.Context) {
	var doc map[string]any
	if !h.BindJSON(c, &doc) {
		return
	}
	report, err := h.service.Update(c.Request.Context(), c.Param("model"), c.Param("id"), doc)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// Delete deactivates an item. The document stays in storage; pass _incl=1
// on the index to see deactivated items.
func (h *ItemHandler) Delete(c *gin.Context) {
	report, err := h.service.Delete(c.Request.Context(), c.Param("model"), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}
