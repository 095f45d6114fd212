package api

import (
	"net/http"
	"time"

	"gamata/fitness-core/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// StatsHandler serves the caller's progress numbers.
type StatsHandler struct {
	statsService service.StatsService
	now          service.Clock
}

func NewStatsHandler(statsService service.StatsService, now service.Clock) *StatsHandler {
	return &StatsHandler{statsService: statsService, now: now}
}

type StreakResponse struct {
	Streak int `json:"streak"`
}

type WeeklyCompletionResponse struct {
	WeekStart string `json:"weekStart"`
	Scheduled int    `json:"scheduled"`
	Completed int    `json:"completed"`
	Percent   int    `json:"percent"`
}

type PersonalRecordResponse struct {
	WorkoutID   string          `json:"workoutId"`
	WorkoutName string          `json:"workoutName"`
	Weight      decimal.Decimal `json:"weight"`
	Reps        *int            `json:"reps,omitempty"`
	SessionID   string          `json:"sessionId"`
	AchievedAt  time.Time       `json:"achievedAt"`
}

type QuickStatsResponse struct {
	SessionsThisWeek int `json:"sessionsThisWeek"`
	CompletedToday   int `json:"completedToday"`
	TotalCompleted   int `json:"totalCompleted"`
	CurrentStreak    int `json:"currentStreak"`
}

type MuscleGroupTotalResponse struct {
	MuscleGroup   string          `json:"muscleGroup"`
	TotalVolume   decimal.Decimal `json:"totalVolume"`
	TotalDuration int             `json:"totalDuration"` // seconds
	TotalSessions int             `json:"totalSessions"`
}

type MuscleGroupProgressResponse struct {
	From   string                     `json:"from"`
	To     string                     `json:"to"`
	Groups []MuscleGroupTotalResponse `json:"groups"`
}

type FrequencyBucketResponse struct {
	Label    string `json:"label"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Sessions int    `json:"sessions"`
}

type FrequencyResponse struct {
	Period        string                    `json:"period"`
	From          string                    `json:"from"`
	To            string                    `json:"to"`
	TotalSessions int                       `json:"totalSessions"`
	Buckets       []FrequencyBucketResponse `json:"buckets"`
}

func MapPersonalRecordToResponse(r *service.PersonalRecord) PersonalRecordResponse {
	return PersonalRecordResponse{
		WorkoutID:   r.WorkoutID.Hex(),
		WorkoutName: r.WorkoutName,
		Weight:      r.Weight,
		Reps:        r.Reps,
		SessionID:   r.SessionID.Hex(),
		AchievedAt:  r.AchievedAt,
	}
}

// GetStreak godoc
// @Summary Current streak
// @Description Consecutive UTC days, ending today, with at least one completed session.
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} StreakResponse
// @Failure 401 {object} errorResponse "Unauthorized"
// @Router /me/stats/streak [get]
func (h *StatsHandler) GetStreak(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	streak, err := h.statsService.Streak(c.Request.Context(), userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, StreakResponse{Streak: streak})
}

// GetWeeklyCompletion godoc
// @Summary Completed versus scheduled plan sessions for one week
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Param week_start query string false "Any day of the week (YYYY-MM-DD), defaults to today"
// @Success 200 {object} WeeklyCompletionResponse
// @Failure 400 {object} errorResponse "Invalid date"
// @Router /me/stats/weekly-completion [get]
func (h *StatsHandler) GetWeeklyCompletion(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	weekStart, ok := queryDate(c, "week_start", h.now())
	if !ok {
		return
	}

	result, err := h.statsService.WeeklyCompletion(c.Request.Context(), userID, weekStart)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, WeeklyCompletionResponse{
		WeekStart: formatDate(result.WeekStart),
		Scheduled: result.Scheduled,
		Completed: result.Completed,
		Percent:   result.Percent,
	})
}

// GetPersonalRecords godoc
// @Summary Best weight per workout
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {array} PersonalRecordResponse
// @Router /me/stats/personal-records [get]
func (h *StatsHandler) GetPersonalRecords(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	records, err := h.statsService.PersonalRecords(c.Request.Context(), userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	responses := make([]PersonalRecordResponse, len(records))
	for i := range records {
		responses[i] = MapPersonalRecordToResponse(&records[i])
	}
	c.JSON(http.StatusOK, responses)
}

// GetPersonalRecord godoc
// @Summary Best weight for one workout
// @Description The workout name match ignores case.
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Param workoutName path string true "Workout name"
// @Success 200 {object} PersonalRecordResponse
// @Failure 404 {object} errorResponse "No weighted session for this workout"
// @Router /me/stats/personal-records/{workoutName} [get]
func (h *StatsHandler) GetPersonalRecord(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	record, err := h.statsService.PersonalRecord(c.Request.Context(), userID, c.Param("workoutName"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPersonalRecordToResponse(record))
}

// GetQuickStats godoc
// @Summary Dashboard summary
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} QuickStatsResponse
// @Router /me/stats/quick [get]
func (h *StatsHandler) GetQuickStats(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	stats, err := h.statsService.QuickStats(c.Request.Context(), userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, QuickStatsResponse{
		SessionsThisWeek: stats.SessionsThisWeek,
		CompletedToday:   stats.CompletedToday,
		TotalCompleted:   stats.TotalCompleted,
		CurrentStreak:    stats.CurrentStreak,
	})
}

// GetMuscleGroupProgress godoc
// @Summary Volume, duration and session count per muscle group
// @Description Volume is weight x sets x reps, or seconds for logs without weight. Defaults to the last 30 days.
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day, inclusive (YYYY-MM-DD)"
// @Success 200 {object} MuscleGroupProgressResponse
// @Failure 400 {object} errorResponse "Invalid date range"
// @Router /me/stats/muscle-groups [get]
func (h *StatsHandler) GetMuscleGroupProgress(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	from, ok := queryDate(c, "from", time.Time{})
	if !ok {
		return
	}
	to, ok := queryDate(c, "to", time.Time{})
	if !ok {
		return
	}

	progress, err := h.statsService.MuscleGroupProgress(c.Request.Context(), userID, from, to)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	resp := MuscleGroupProgressResponse{
		From:   formatDate(progress.From),
		To:     formatDate(progress.To),
		Groups: make([]MuscleGroupTotalResponse, len(progress.Groups)),
	}
	for i, g := range progress.Groups {
		resp.Groups[i] = MuscleGroupTotalResponse{
			MuscleGroup:   g.MuscleGroup,
			TotalVolume:   g.TotalVolume,
			TotalDuration: g.TotalDuration,
			TotalSessions: g.TotalSessions,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetFrequency godoc
// @Summary Completed sessions per week or month
// @Description Weekly buckets start on Monday. Defaults to the last 8 weeks or 6 months.
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Param period query string false "weekly (default) or monthly"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day, inclusive (YYYY-MM-DD)"
// @Success 200 {object} FrequencyResponse
// @Failure 400 {object} errorResponse "Invalid period or date range"
// @Router /me/stats/frequency [get]
func (h *StatsHandler) GetFrequency(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	period, err := service.ParseFrequencyPeriod(c.Query("period"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	from, ok := queryDate(c, "from", time.Time{})
	if !ok {
		return
	}
	to, ok := queryDate(c, "to", time.Time{})
	if !ok {
		return
	}

	freq, err := h.statsService.Frequency(c.Request.Context(), userID, period, from, to)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	resp := FrequencyResponse{
		Period:        string(freq.Period),
		From:          formatDate(freq.From),
		To:            formatDate(freq.To),
		TotalSessions: freq.TotalSessions,
		Buckets:       make([]FrequencyBucketResponse, len(freq.Buckets)),
	}
	for i, b := range freq.Buckets {
		resp.Buckets[i] = FrequencyBucketResponse{
			Label:    b.Label,
			Start:    formatDate(b.Start),
			End:      formatDate(b.End),
			Sessions: b.Sessions,
		}
	}
	c.JSON(http.StatusOK, resp)
}
