package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/dto"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// getTenantID reads the required X-Tenant-ID header
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetHeader(middleware.TenantIDHeader)
	if raw == "" {
		return uuid.Nil, errors.New("X-Tenant-ID header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.New("X-Tenant-ID must be a non-nil UUID")
	}
	return id, nil
}

// requireTenant resolves the tenant or writes a 400 and returns false
func (h *BaseHandler) requireTenant(c *gin.Context) (uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeMissingTenant, err.Error())
		return uuid.Nil, false
	}
	return tenantID, true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// errorMapping pairs a sentinel error with its API error code. Order matters:
// the first sentinel found in the chain wins.
var errorMapping = []struct {
	target error
	code   string
}{
	{integration.ErrFatalConfiguration, dto.ErrCodeFatalConfiguration},
	{integration.ErrSyncConfigNotFound, dto.ErrCodeFatalConfiguration},
	{integration.ErrInvalidRunMode, dto.ErrCodeValidation},
	{integration.ErrRunAborted, dto.ErrCodeRunAborted},
	{integration.ErrBoardUnauthorized, dto.ErrCodeBoardUnauthorized},
	{integration.ErrBoardRequestFailed, dto.ErrCodeBoardUnavailable},
	{integration.ErrBoardInvalidResponse, dto.ErrCodeBoardUnavailable},
	{integration.ErrWebhookNotRegistered, dto.ErrCodeNotFound},
	{integration.ErrCardMissingID, dto.ErrCodeInvalidCard},
	{integration.ErrCardMissingList, dto.ErrCodeInvalidCard},
}

// errorCode maps err onto an API error code, ErrCodeInternal when unknown
func errorCode(err error) string {
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			return m.code
		}
	}
	return dto.ErrCodeInternal
}

// HandleError converts sync errors to HTTP responses. Internal errors are
// reported without their message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := errorCode(err)
	message := err.Error()
	if code == dto.ErrCodeInternal {
		message = "An unexpected error occurred"
	}
	h.ErrorWithCode(c, code, message)
}
