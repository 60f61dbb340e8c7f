package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

// QueryHandler consultas de solo lectura sobre niveles y ledger (protegido).
type QueryHandler struct {
	query *inventory.QueryService
}

// NewQueryHandler construye el handler.
func NewQueryHandler(query *inventory.QueryService) *QueryHandler {
	return &QueryHandler{query: query}
}

// Levels godoc
// @Summary      Niveles de stock filtrados y paginados
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id      query  string  false  "producto"
// @Param        location_id     query  string  false  "ubicación"
// @Param        warehouse_id    query  string  false  "bodega"
// @Param        batch_number    query  string  false  "lote"
// @Param        expires_from    query  string  false  "vencimiento desde (2006-01-02)"
// @Param        expires_to      query  string  false  "vencimiento hasta (2006-01-02)"
// @Param        only_available  query  bool    false  "solo disponible > 0"
// @Param        sort            query  string  false  "product|location|expiry|available|on_hand"
// @Param        desc            query  bool    false  "orden descendente"
// @Param        page            query  int     false  "página (desde 1)"
// @Param        page_size       query  int     false  "tamaño de página"
// @Success      200  {object}  dto.LevelPageResponse
// @Router       /api/stock/levels [get]
func (h *QueryHandler) Levels(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	page, errResp := parsePage(c)
	if errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}
	from, err := parseDate(c.Query("expires_from"))
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error(), nil)
	}
	to, err := parseDate(c.Query("expires_to"))
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error(), nil)
	}
	onlyAvailable, err := parseBoolQuery(c, "only_available")
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error(), nil)
	}
	desc, err := parseBoolQuery(c, "desc")
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error(), nil)
	}
	res, err := h.query.GetLevels(c.Context(), tenantID, inventory.LevelFilter{
		ProductID:     strings.TrimSpace(c.Query("product_id")),
		LocationID:    strings.TrimSpace(c.Query("location_id")),
		WarehouseID:   strings.TrimSpace(c.Query("warehouse_id")),
		BatchNumber:   strings.TrimSpace(c.Query("batch_number")),
		ExpiresFrom:   from,
		ExpiresTo:     to,
		OnlyAvailable: onlyAvailable,
		SortBy:        strings.TrimSpace(c.Query("sort")),
		Desc:          desc,
	}, page.Page, page.PageSize)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.LevelPageResponse{
		PageResponse: dto.PageResponse{Page: res.Page, PageSize: res.PageSize, Total: res.Total},
		Items:        toLevelResponses(res.Items),
	})
}

// Available godoc
// @Summary      Disponible de un producto
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  string  true   "producto"
// @Param        location_id   query  string  false  "ubicación"
// @Param        batch_number  query  string  false  "lote"
// @Success      200  {object}  dto.AvailableResponse
// @Router       /api/stock/available [get]
func (h *QueryHandler) Available(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	out := dto.AvailableResponse{
		ProductID:   strings.TrimSpace(c.Query("product_id")),
		LocationID:  strings.TrimSpace(c.Query("location_id")),
		BatchNumber: strings.TrimSpace(c.Query("batch_number")),
	}
	qty, err := h.query.GetAvailableQuantity(c.Context(), tenantID, out.ProductID, out.LocationID, out.BatchNumber)
	if err != nil {
		return respondError(c, err)
	}
	out.Available = qty
	return c.JSON(out)
}

// Summary godoc
// @Summary      Resumen de stock del producto por ubicación
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        productId  path  string  true  "producto"
// @Success      200  {object}  dto.StockSummaryResponse
// @Router       /api/stock/summary/{productId} [get]
func (h *QueryHandler) Summary(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	sum, err := h.query.GetSummary(c.Context(), tenantID, c.Params("productId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toSummaryResponse(sum))
}

// LowStock godoc
// @Summary      ¿El producto está por debajo del umbral?
// @Description  Sin threshold se usa el punto de reorden del catálogo.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        productId  path   string  true   "producto"
// @Param        threshold  query  string  false  "umbral decimal"
// @Success      200  {object}  dto.LowStockResponse
// @Router       /api/stock/low-stock/{productId} [get]
func (h *QueryHandler) LowStock(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	threshold, err := parseDecimalQuery(c, "threshold")
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error(), nil)
	}
	productID := c.Params("productId")
	low, err := h.query.IsLowStock(c.Context(), tenantID, productID, threshold)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.LowStockResponse{ProductID: productID, LowStock: low})
}

// Movements godoc
// @Summary      Historial del ledger de un producto
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  string  true   "producto"
// @Param        location_id  query  string  false  "ubicación"
// @Param        page         query  int     false  "página (desde 1)"
// @Param        page_size    query  int     false  "tamaño de página"
// @Success      200  {object}  dto.MovementListResponse
// @Router       /api/stock/movements [get]
func (h *QueryHandler) Movements(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	page, errResp := parsePage(c)
	if errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}
	list, err := h.query.ListMovements(c.Context(), tenantID,
		strings.TrimSpace(c.Query("product_id")), strings.TrimSpace(c.Query("location_id")),
		page.Page, page.PageSize)
	if err != nil {
		return respondError(c, err)
	}
	out := dto.MovementListResponse{Page: page.Page, PageSize: page.PageSize, Items: make([]dto.MovementResponse, 0, len(list))}
	if out.Page < 1 {
		out.Page = 1
	}
	for _, m := range list {
		out.Items = append(out.Items, toMovementResponse(m))
	}
	return c.JSON(out)
}
