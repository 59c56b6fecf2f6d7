package handlers

import (
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/course-player/internal/models"
	"github.com/SAP-F-2025/course-player/internal/quizsession"
	"github.com/SAP-F-2025/course-player/internal/services"
	"github.com/SAP-F-2025/course-player/internal/utils"
)

const signalSendTimeout = 5 * time.Second

// Origins are already enforced by the CORS middleware.
var signalUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type signalMessage struct {
	Kind string `json:"kind"`
}

type QuizHandler struct {
	BaseHandler
	quizService services.QuizService
}

func NewQuizHandler(quizService services.QuizService, logger utils.Logger) *QuizHandler {
	return &QuizHandler{
		BaseHandler: NewBaseHandler(logger),
		quizService: quizService,
	}
}

// StartQuiz opens (or resumes) a quiz session
// @Router /quiz-sessions [post]
func (h *QuizHandler) StartQuiz(c *gin.Context) {
	var req services.StartQuizRequest
	if !bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Starting quiz", "course_id", req.CourseID, "quiz_id", req.QuizID)

	view, err := h.quizService.Start(c.Request.Context(), sessionID(c), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// @Router /quiz-sessions/{id} [get]
func (h *QuizHandler) GetQuizSession(c *gin.Context) {
	view, err := h.quizService.Get(c.Request.Context(), sessionID(c), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CancelQuizSession stops the timer and discards unsubmitted answers
// @Router /quiz-sessions/{id} [delete]
func (h *QuizHandler) CancelQuizSession(c *gin.Context) {
	if err := h.quizService.Cancel(c.Request.Context(), sessionID(c), c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordAnswer replaces the answer to one question
// @Router /quiz-sessions/{id}/answers/{question_id} [put]
func (h *QuizHandler) RecordAnswer(c *gin.Context) {
	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}
	var req services.AnswerRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.quizService.Answer(c.Request.Context(), sessionID(c), c.Param("id"), questionID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Router /quiz-sessions/{id}/next [post]
func (h *QuizHandler) NextQuestion(c *gin.Context) {
	view, err := h.quizService.Next(c.Request.Context(), sessionID(c), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Router /quiz-sessions/{id}/previous [post]
func (h *QuizHandler) PreviousQuestion(c *gin.Context) {
	view, err := h.quizService.Previous(c.Request.Context(), sessionID(c), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ReportViolation counts a visibility or focus loss reported by the client
// @Router /quiz-sessions/{id}/violations [post]
func (h *QuizHandler) ReportViolation(c *gin.Context) {
	var req services.ViolationRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.quizService.ReportViolation(c.Request.Context(), sessionID(c), c.Param("id"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if resp.Warning.Forced {
		h.LogRequest(c, "Violation limit reached, quiz auto-submitted", "quiz_session_id", c.Param("id"))
	}
	c.JSON(http.StatusOK, resp)
}

// Submit sends the answers to the LMS for grading
// @Router /quiz-sessions/{id}/submit [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	h.LogRequest(c, "Submitting quiz", "quiz_session_id", c.Param("id"))

	view, err := h.quizService.Submit(c.Request.Context(), sessionID(c), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// WatchSignals upgrades to a websocket and forwards the page's visibility and
// focus signals to the quiz session for as long as the connection is open.
// @Router /quiz-sessions/{id}/signals [get]
func (h *QuizHandler) WatchSignals(c *gin.Context) {
	ctx := c.Request.Context()
	sid, quizSessionID := sessionID(c), c.Param("id")

	if _, err := h.quizService.Get(ctx, sid, quizSessionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	conn, err := signalUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.LogError(c, err, "Failed to upgrade signal connection")
		return
	}
	defer conn.Close()

	signals := make(chan quizsession.Signal, 8)
	stop, err := h.quizService.Watch(ctx, sid, quizSessionID, signals)
	if err != nil {
		_ = conn.WriteJSON(ErrorResponse{Message: err.Error(), Code: "watch_failed"})
		return
	}
	defer stop()

	h.LogRequest(c, "Signal stream opened", "quiz_session_id", quizSessionID)
	for {
		var msg signalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		kind := models.ProctoringEventType(msg.Kind)
		if !kind.IsViolation() {
			_ = conn.WriteJSON(ErrorResponse{Message: "unknown signal kind", Code: "invalid_input"})
			continue
		}
		select {
		case signals <- quizsession.Signal{Kind: kind, At: time.Now()}:
		case <-time.After(signalSendTimeout):
			return
		}
	}
}
