// internal/handlers/verification.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tonytran1984vn/trustchecker/internal/models"
	"github.com/tonytran1984vn/trustchecker/internal/services"
	"github.com/tonytran1984vn/trustchecker/internal/utils"
)

type VerificationHandler struct {
	verificationService *services.VerificationService
	sealService         *services.SealService
}

func NewVerificationHandler(verificationService *services.VerificationService, sealService *services.SealService) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
		sealService:         sealService,
	}
}

// POST /verify
func (h *VerificationHandler) VerifyScan(c *gin.Context) {
	var req services.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	req.ScanType = models.ScanTypeValidation
	if req.IPAddress == "" {
		req.IPAddress = c.ClientIP()
	}
	if req.UserAgent == "" {
		req.UserAgent = c.GetHeader("User-Agent")
	}

	result, err := h.verificationService.VerifyScan(c.Request.Context(), &req)
	if err != nil {
		utils.InternalErrorResponse(c, "Verification failed")
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /verify/mobile
//
// Same pipeline as VerifyScan but tagged as a camera scan and accepting an
// optional base64 evidence image.
func (h *VerificationHandler) MobileScan(c *gin.Context) {
	var req services.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	req.ScanType = models.ScanTypeMobileCamera
	if req.IPAddress == "" {
		req.IPAddress = c.ClientIP()
	}
	if req.UserAgent == "" {
		req.UserAgent = c.GetHeader("User-Agent")
	}

	result, err := h.verificationService.VerifyScan(c.Request.Context(), &req)
	if err != nil {
		utils.InternalErrorResponse(c, "Verification failed")
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /verify/chain
func (h *VerificationHandler) VerifyChainIntegrity(c *gin.Context) {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	verification, err := h.sealService.VerifyChain(c.Request.Context(), limit)
	if err != nil {
		utils.InternalErrorResponse(c, "Chain verification failed")
		return
	}

	utils.SuccessResponse(c, verification)
}
