// internal/handlers/audit.go
package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tonytran1984vn/trustchecker/internal/events"
	"github.com/tonytran1984vn/trustchecker/internal/models"
	"github.com/tonytran1984vn/trustchecker/internal/services"
	"github.com/tonytran1984vn/trustchecker/internal/utils"
)

type AuditHandler struct {
	auditService *services.AuditService
	sealService  *services.SealService
	trustService *services.TrustService
	bus          *events.Bus
}

func NewAuditHandler(auditService *services.AuditService, sealService *services.SealService, trustService *services.TrustService, bus *events.Bus) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		sealService:  sealService,
		trustService: trustService,
		bus:          bus,
	}
}

// GET /scans
func (h *AuditHandler) ScanHistory(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var productID *uuid.UUID
	if idStr := c.Query("product_id"); idStr != "" {
		parsed, err := uuid.Parse(idStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid product ID", nil)
			return
		}
		productID = &parsed
	}

	result, err := h.auditService.ScanHistory(c.Request.Context(), productID, params)
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to fetch scan history")
		return
	}

	utils.PaginatedResponse(c, result)
}

// GET /alerts
func (h *AuditHandler) FraudAlerts(c *gin.Context) {
	status := models.AlertStatus(c.DefaultQuery("status", string(models.AlertStatusOpen)))
	limit := parseLimit(c, 50)

	alerts, err := h.auditService.FraudAlerts(c.Request.Context(), status, limit)
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to fetch fraud alerts")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// POST /alerts/:id/resolve
func (h *AuditHandler) ResolveAlert(c *gin.Context) {
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid alert ID", nil)
		return
	}

	resolvedBy, _ := c.Get("subject_id")
	resolvedByStr, _ := resolvedBy.(string)

	if err := h.auditService.ResolveAlert(c.Request.Context(), alertID, resolvedByStr); err != nil {
		if errors.Is(err, services.ErrAlertNotOpen) {
			utils.NotFoundResponse(c, "Open alert")
			return
		}
		utils.InternalErrorResponse(c, "Failed to resolve alert")
		return
	}

	utils.SuccessResponse(c, gin.H{"resolved": true})
}

// GET /chain/stats
func (h *AuditHandler) ChainStats(c *gin.Context) {
	stats, err := h.sealService.Stats(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to fetch chain stats")
		return
	}

	utils.SuccessResponse(c, stats)
}

// GET /chain/seals
func (h *AuditHandler) RecentSeals(c *gin.Context) {
	limit := parseLimit(c, 20)

	seals, err := h.sealService.Recent(c.Request.Context(), limit)
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to fetch seals")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"seals": seals,
		"count": len(seals),
	})
}

// GET /stats/dashboard
func (h *AuditHandler) Dashboard(c *gin.Context) {
	stats, err := h.auditService.Dashboard(c.Request.Context())
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to fetch dashboard stats")
		return
	}

	utils.SuccessResponse(c, stats)
}

// GET /events
func (h *AuditHandler) RecentEvents(c *gin.Context) {
	limit := parseLimit(c, 50)
	utils.SuccessResponse(c, gin.H{
		"events": h.bus.Recent(limit),
	})
}

// GET /products/:id/trust
func (h *AuditHandler) TrustHistory(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	limit := parseLimit(c, 30)
	records, err := h.trustService.History(c.Request.Context(), productID, limit)
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to fetch trust history")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"product_id": productID,
		"history":    records,
	})
}

// GET /products/:id/check
//
// Public product lookup without running a verification.
func (h *AuditHandler) ProductCheck(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	check, err := h.auditService.ProductCheck(c.Request.Context(), productID)
	if err != nil {
		utils.InternalErrorResponse(c, "Failed to check product")
		return
	}
	if !check.Found {
		utils.NotFoundResponse(c, "Product")
		return
	}

	utils.SuccessResponse(c, check)
}

func parseLimit(c *gin.Context, fallback int) int {
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
