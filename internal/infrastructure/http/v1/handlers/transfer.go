package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Valencza/sistem-inventaris-barang/internal/core/apperror"
	"github.com/Valencza/sistem-inventaris-barang/internal/core/id"
	"github.com/Valencza/sistem-inventaris-barang/internal/domain/transfer"
	"github.com/Valencza/sistem-inventaris-barang/internal/infrastructure/http/v1/dto"
)

// TransferHandler handles HTTP requests for transfer documents.
type TransferHandler struct {
	*BaseHandler
	service *transfer.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	return &TransferHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /transfers
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	fromID, err := id.Parse(req.FromWarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid fromWarehouseId format"))
		return
	}
	toID, err := id.Parse(req.ToWarehouseID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid toWarehouseId format"))
		return
	}

	in := transfer.CreateInput{
		FromWarehouseID: fromID,
		ToWarehouseID:   toID,
		Notes:           req.Notes,
		Post:            req.Post,
		Items:           make([]transfer.ItemInput, 0, len(req.Items)),
	}
	for i, item := range req.Items {
		productID, err := id.Parse(item.ProductID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format").WithDetail("lineNo", i+1))
			return
		}
		in.Items = append(in.Items, transfer.ItemInput{
			ProductID: productID,
			Quantity:  item.Quantity,
		})
	}

	t, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromTransfer(t))
}

// Get handles GET /transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	transferID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	t, err := h.service.GetByID(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransfer(t))
}

// List handles GET /transfers
func (h *TransferHandler) List(c *gin.Context) {
	filter := transfer.ListFilter{}
	filter.OrderBy = c.Query("orderBy")
	filter.Limit = h.ParseIntQuery(c, "limit", 0)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	if statusStr := c.Query("status"); statusStr != "" {
		status := transfer.Status(statusStr)
		if !status.Valid() {
			h.Error(c, apperror.NewValidation("unknown status").WithDetail("status", statusStr))
			return
		}
		filter.Status = &status
	}

	if whStr := c.Query("fromWarehouseId"); whStr != "" {
		parsed, err := id.Parse(whStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid fromWarehouseId format"))
			return
		}
		filter.FromWarehouseID = &parsed
	}
	if whStr := c.Query("toWarehouseId"); whStr != "" {
		parsed, err := id.Parse(whStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid toWarehouseId format"))
			return
		}
		filter.ToWarehouseID = &parsed
	}

	if fromStr := c.Query("dateFrom"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid dateFrom format, expected RFC3339"))
			return
		}
		filter.DateFrom = &parsed
	}
	if toStr := c.Query("dateTo"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid dateTo format, expected RFC3339"))
			return
		}
		filter.DateTo = &parsed
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.TransferResponse, len(result.Items))
	for i, t := range result.Items {
		items[i] = dto.FromTransfer(t)
	}

	h.OK(c, dto.ListResponse[dto.TransferResponse]{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Post handles POST /transfers/:id/post
func (h *TransferHandler) Post(c *gin.Context) {
	transferID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	t, err := h.service.Post(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransfer(t))
}

// Cancel handles POST /transfers/:id/cancel
func (h *TransferHandler) Cancel(c *gin.Context) {
	transferID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	t, err := h.service.Cancel(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransfer(t))
}

// Restore handles POST /transfers/:id/restore
func (h *TransferHandler) Restore(c *gin.Context) {
	transferID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	t, err := h.service.RestoreToDraft(c.Request.Context(), transferID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransfer(t))
}

// Delete handles DELETE /transfers/:id
func (h *TransferHandler) Delete(c *gin.Context) {
	transferID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), transferID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// RegisterRoutes registers transfer routes.
func (h *TransferHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/post", h.Post)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/restore", h.Restore)
}

func (h *TransferHandler) parseIDParam(c *gin.Context) (id.ID, bool) {
	transferID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid transfer id format"))
		return id.Nil(), false
	}
	return transferID, true
}
