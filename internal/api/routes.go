package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"gamata/fitness-core/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles what the handlers call into.
type Services struct {
	Catalog     service.CatalogService
	Plans       service.PlanService
	Assignments service.AssignmentService
	Schedule    service.ScheduleService
	Sessions    service.SessionService
	Stats       service.StatsService
	Now         service.Clock
	// Health reports whether the store is reachable. Nil skips the check.
	Health func(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// RouteOptions carries the HTTP-level settings.
type RouteOptions struct {
	JWTSecret      string
	JWTIssuer      string
	MetricsEnabled bool
}

func SetupRoutes(router *gin.Engine, opts RouteOptions, services Services) {
	now := services.Now
	if now == nil {
		now = service.SystemClock
	}

	authHandler := NewAuthHandler()
	catalogHandler := NewCatalogHandler(services.Catalog)
	coachHandler := NewCoachHandler(services.Plans, services.Assignments)
	athleteHandler := NewAthleteHandler(services.Assignments, services.Schedule, now)
	sessionHandler := NewSessionHandler(services.Sessions)
	statsHandler := NewStatsHandler(services.Stats, now)

	router.Use(RequestIDMiddleware())
	if opts.MetricsEnabled {
		router.Use(MetricsMiddleware())
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.GET("/ping", func(c *gin.Context) {
		if services.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := services.Health(ctx); err != nil {
				slog.Error("health check failed", "error", err)
				abortWithError(c, http.StatusServiceUnavailable, CodeUnavailable, "Store is unreachable")
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	protected := router.Group("/api/v1")
	protected.Use(AuthMiddleware(opts.JWTSecret, opts.JWTIssuer))
	{
		protected.GET("/me", authHandler.Me)

		// --- Catalog ---
		protected.GET("/workouts", catalogHandler.GetWorkouts)
		protected.GET("/workouts/:workoutId", catalogHandler.GetWorkout)

		// --- Coach: plans the caller owns ---
		coach := protected.Group("/coach/plans")
		{
			coach.POST("", coachHandler.CreatePlan)
			coach.GET("", coachHandler.ListPlans)
			coach.GET("/:planId", coachHandler.GetPlan)
			coach.PUT("/:planId/days", coachHandler.UpdatePlanDays)
			coach.POST("/:planId/archive", coachHandler.ArchivePlan)
			coach.POST("/:planId/unarchive", coachHandler.UnarchivePlan)
			coach.POST("/:planId/assign", coachHandler.AssignPlan)
			coach.GET("/:planId/assignments", coachHandler.GetPlanAssignments)
		}

		// --- Athlete: the caller's own ledger, schedule and sessions ---
		me := protected.Group("/me")
		{
			me.GET("/assignments", athleteHandler.GetAssignments)
			me.POST("/assignments/:assignmentId/activate", athleteHandler.ActivateAssignment)
			me.POST("/assignments/:assignmentId/decline", athleteHandler.DeclineAssignment)

			me.GET("/today", athleteHandler.GetToday)
			me.GET("/week", athleteHandler.GetWeek)

			me.POST("/sessions", sessionHandler.CreateSession)
			me.GET("/sessions", sessionHandler.ListSessions)
			me.GET("/sessions/:sessionId", sessionHandler.GetSession)
			me.POST("/sessions/:sessionId/logs", sessionHandler.AddLog)
			me.PUT("/sessions/:sessionId/logs/:logId", sessionHandler.UpdateLog)
			me.POST("/sessions/:sessionId/complete", sessionHandler.CompleteSession)

			me.GET("/stats/streak", statsHandler.GetStreak)
			me.GET("/stats/weekly-completion", statsHandler.GetWeeklyCompletion)
			me.GET("/stats/personal-records", statsHandler.GetPersonalRecords)
			me.GET("/stats/personal-records/:workoutName", statsHandler.GetPersonalRecord)
			me.GET("/stats/quick", statsHandler.GetQuickStats)
			me.GET("/stats/muscle-groups", statsHandler.GetMuscleGroupProgress)
			me.GET("/stats/frequency", statsHandler.GetFrequency)
		}
	}
}
