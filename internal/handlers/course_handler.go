package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/course-player/internal/services"
	"github.com/SAP-F-2025/course-player/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type CourseHandler struct {
	BaseHandler
	playerService services.PlayerService
	reportService services.ReportService
}

func NewCourseHandler(playerService services.PlayerService, reportService services.ReportService, logger utils.Logger) *CourseHandler {
	return &CourseHandler{
		BaseHandler:   NewBaseHandler(logger),
		playerService: playerService,
		reportService: reportService,
	}
}

// LoadCourse fetches the course and builds the learner's curriculum
// @Router /courses/{course_id} [get]
func (h *CourseHandler) LoadCourse(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}

	h.LogRequest(c, "Loading course", "course_id", courseID)

	view, err := h.playerService.LoadCourse(c.Request.Context(), sessionID(c), courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Router /courses/{course_id}/curriculum [get]
func (h *CourseHandler) GetCurriculum(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}

	view, err := h.playerService.Curriculum(c.Request.Context(), sessionID(c), courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SelectItem makes an unlocked item active
// @Router /courses/{course_id}/items/{item}/select [post]
func (h *CourseHandler) SelectItem(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}
	ref, ok := parseItemParam(c, "item")
	if !ok {
		return
	}

	view, err := h.playerService.Select(c.Request.Context(), sessionID(c), courseID, ref)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CompleteItem marks an item completed and advances to the next one
// @Router /courses/{course_id}/items/{item}/complete [post]
func (h *CourseHandler) CompleteItem(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}
	ref, ok := parseItemParam(c, "item")
	if !ok {
		return
	}

	h.LogRequest(c, "Completing item", "course_id", courseID, "item", ref.String())

	result, err := h.playerService.Complete(c.Request.Context(), sessionID(c), courseID, ref)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportReport downloads the learner's progress workbook
// @Router /courses/{course_id}/report.xlsx [get]
func (h *CourseHandler) ExportReport(c *gin.Context) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return
	}

	report, err := h.reportService.ExportProgress(c.Request.Context(), sessionID(c), courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	c.Data(http.StatusOK, xlsxContentType, report.Content)
}
