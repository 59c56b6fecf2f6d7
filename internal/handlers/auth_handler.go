package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/course-player/internal/services"
	"github.com/SAP-F-2025/course-player/internal/utils"
)

type AuthHandler struct {
	BaseHandler
	learnerService services.LearnerService
}

func NewAuthHandler(learnerService services.LearnerService, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler:    NewBaseHandler(logger),
		learnerService: learnerService,
	}
}

// Login signs the learner in against the LMS and opens a player session
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.learnerService.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Learner signed in", "learner_id", resp.Learner.ID)
	c.JSON(http.StatusCreated, resp)
}

// Logout closes the player session and every quiz session it owns
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.learnerService.Logout(c.Request.Context(), sessionID(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Logged out"})
}

// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	learner, err := h.learnerService.Me(c.Request.Context(), sessionID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, learner)
}
