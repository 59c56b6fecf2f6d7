package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/course-player/internal/models"
	"github.com/SAP-F-2025/course-player/internal/quizsession"
	"github.com/SAP-F-2025/course-player/internal/services"
	"github.com/SAP-F-2025/course-player/internal/utils"
)

const (
	// PlayerSessionHeader carries the id returned by login.
	PlayerSessionHeader = "X-Player-Session"
	// PlayerSessionQuery carries it on websocket handshakes.
	PlayerSessionQuery = "session"
)

const sessionIDKey = "player_session_id"

// ===== COMMON RESPONSE STRUCTURES =====

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides request-scoped logging and error mapping
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	if _, ok := c.Get("logger"); ok {
		return utils.GetLoggerFromContext(c)
	}
	return h.logger
}

func (h *BaseHandler) LogRequest(c *gin.Context, message string, fields ...interface{}) {
	fields = append([]interface{}{"session_id", sessionID(c)}, fields...)
	h.log(c).Info(message, fields...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, message string, fields ...interface{}) {
	fields = append([]interface{}{"session_id", sessionID(c)}, fields...)
	h.log(c).LogError(err, message, fields...)
}

// RequireSession rejects requests without a live learner session and stores
// its id on the context.
func RequireSession(learners services.LearnerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(PlayerSessionHeader))
		// Browsers cannot set headers on a websocket handshake.
		if id == "" && websocket.IsWebSocketUpgrade(c.Request) {
			id = strings.TrimSpace(c.Query(PlayerSessionQuery))
		}
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing " + PlayerSessionHeader + " header",
				Code:    "session_required",
			})
			return
		}
		if _, err := learners.Session(id); err != nil {
			code := "session_not_found"
			if errors.Is(err, services.ErrLearnerSessionExpired) {
				code = "session_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: err.Error(),
				Code:    code,
			})
			return
		}
		c.Set(sessionIDKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// ===== PARAM HELPERS =====

func parseIDParam(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be a positive integer",
		})
		return 0, false
	}
	return uint(id), true
}

func parseItemParam(c *gin.Context, param string) (models.ItemRef, bool) {
	ref, err := models.ParseItemRef(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: err.Error(),
		})
		return models.ItemRef{}, false
	}
	return ref, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// ===== ERROR MAPPING =====

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
			Code:    "validation_failed",
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
			},
			Code: "forbidden",
		})
		return
	}

	switch {
	case services.IsUnauthorized(err):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: err.Error(), Code: "unauthorized"})
	case errors.Is(err, services.ErrItemLocked):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Item is locked", Code: "item_locked"})
	case errors.Is(err, services.ErrQuizCompletionByGrading):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Submit the quiz to complete it", Code: "quiz_requires_submission"})
	case errors.Is(err, quizsession.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Submission already in progress", Code: "submit_in_flight"})
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error(), Code: "conflict"})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error(), Code: "not_found"})
	case services.IsValidation(err):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: err.Error(), Code: "invalid_input"})
	case errors.Is(err, quizsession.ErrSubmitFailed):
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: quizsession.SubmitFailedMessage, Code: "submit_failed"})
	case services.IsUpstream(err):
		h.LogError(c, err, "LMS request failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: err.Error(), Code: "upstream_failed"})
	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}
