package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SAP-F-2025/course-player/internal/services"
	"github.com/SAP-F-2025/course-player/internal/utils"
)

type Services struct {
	Learners services.LearnerService
	Player   services.PlayerService
	Quizzes  services.QuizService
	Reports  services.ReportService
}

type HandlerManager struct {
	learners      services.LearnerService
	authHandler   *AuthHandler
	courseHandler *CourseHandler
	quizHandler   *QuizHandler
}

func NewHandlerManager(svc Services, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		learners:      svc.Learners,
		authHandler:   NewAuthHandler(svc.Learners, logger),
		courseHandler: NewCourseHandler(svc.Player, svc.Reports, logger),
		quizHandler:   NewQuizHandler(svc.Quizzes, logger),
	}
}

// NewRouter builds the gin engine with logging, CORS and every route.
func NewRouter(hm *HandlerManager, logger utils.Logger, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(corsMiddleware(allowedOrigins))

	hm.SetupRoutes(router)
	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Content-Length", "Authorization", PlayerSessionHeader, utils.RequestIDHeader}
	config.ExposeHeaders = []string{"Content-Length", "Content-Disposition", utils.RequestIDHeader}
	config.MaxAge = 12 * time.Hour
	return cors.New(config)
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", hm.authHandler.Login)
			auth.POST("/logout", RequireSession(hm.learners), hm.authHandler.Logout)
			auth.GET("/me", RequireSession(hm.learners), hm.authHandler.Me)
		}

		courses := v1.Group("/courses", RequireSession(hm.learners))
		{
			courses.GET("/:course_id", hm.courseHandler.LoadCourse)
			courses.GET("/:course_id/curriculum", hm.courseHandler.GetCurriculum)
			courses.GET("/:course_id/report.xlsx", hm.courseHandler.ExportReport)
			courses.POST("/:course_id/items/:item/select", hm.courseHandler.SelectItem)
			courses.POST("/:course_id/items/:item/complete", hm.courseHandler.CompleteItem)
		}

		quizSessions := v1.Group("/quiz-sessions", RequireSession(hm.learners))
		{
			quizSessions.POST("", hm.quizHandler.StartQuiz)
			quizSessions.GET("/:id", hm.quizHandler.GetQuizSession)
			quizSessions.DELETE("/:id", hm.quizHandler.CancelQuizSession)
			quizSessions.PUT("/:id/answers/:question_id", hm.quizHandler.RecordAnswer)
			quizSessions.POST("/:id/next", hm.quizHandler.NextQuestion)
			quizSessions.POST("/:id/previous", hm.quizHandler.PreviousQuestion)
			quizSessions.POST("/:id/violations", hm.quizHandler.ReportViolation)
			quizSessions.GET("/:id/signals", hm.quizHandler.WatchSignals)
			quizSessions.POST("/:id/submit", hm.quizHandler.Submit)
		}
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "course-player",
	})
}
