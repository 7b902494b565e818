package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/batchpass-api/internal/dto"
	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
	"github.com/noah-isme/batchpass-api/pkg/response"
)

type entitlementService interface {
	Evaluate(ctx context.Context, studentID string, path models.ResourcePath) (models.AccessDecision, error)
	Content(ctx context.Context, studentID, batchID string) (*dto.BatchContentResponse, error)
}

// EntitlementHandler answers access checks and renders batch pages.
type EntitlementHandler struct {
	entitlements entitlementService
}

// NewEntitlementHandler constructs EntitlementHandler.
func NewEntitlementHandler(entitlements entitlementService) *EntitlementHandler {
	return &EntitlementHandler{entitlements: entitlements}
}

// Check godoc
// @Summary Check access to a batch, subject or chapter
// @Tags Entitlements
// @Produce json
// @Param studentId query string false "Student (staff only, defaults to caller)"
// @Param batchId query string true "Batch ID"
// @Param subjectId query string false "Subject ID"
// @Param chapterId query string false "Chapter ID, requires subjectId"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /entitlement [get]
func (h *EntitlementHandler) Check(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.EntitlementQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}

	studentID := claims.UserID
	if requested := strings.TrimSpace(query.StudentID); requested != "" && requested != claims.UserID {
		if !claims.Role.IsStaff() {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		studentID = requested
	}

	decision, err := h.entitlements.Evaluate(c.Request.Context(), studentID, models.ResourcePath{
		BatchID:   strings.TrimSpace(query.BatchID),
		SubjectID: strings.TrimSpace(query.SubjectID),
		ChapterID: strings.TrimSpace(query.ChapterID),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// Content godoc
// @Summary Batch page with chapter locks for the caller
// @Tags Entitlements
// @Produce json
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{batchId}/content [get]
func (h *EntitlementHandler) Content(c *gin.Context) {
	content, err := h.entitlements.Content(c.Request.Context(), callerID(c), c.Param("batchId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}
