// internal/handlers/code.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tonytran1984vn/trustchecker/internal/services"
	"github.com/tonytran1984vn/trustchecker/internal/utils"
)

type CodeHandler struct {
	codeService *services.CodeService
}

func NewCodeHandler(codeService *services.CodeService) *CodeHandler {
	return &CodeHandler{
		codeService: codeService,
	}
}

type generateCodesRequest struct {
	Count int `json:"count" validate:"required,min=1,max=1000"`
}

// POST /products/:id/codes
func (h *CodeHandler) GenerateCodes(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	var req generateCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	codes, err := h.codeService.GenerateCodes(c.Request.Context(), productID, req.Count)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"product_id": productID,
		"count":      len(codes),
		"codes":      codes,
	})
}

// POST /codes/:id/revoke
func (h *CodeHandler) RevokeCode(c *gin.Context) {
	codeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid code ID", nil)
		return
	}

	code, err := h.codeService.RevokeCode(c.Request.Context(), codeID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, code)
}

// DELETE /codes/:id
func (h *CodeHandler) DeleteCode(c *gin.Context) {
	codeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid code ID", nil)
		return
	}

	if err := h.codeService.DeleteCode(c.Request.Context(), codeID); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": true})
}
