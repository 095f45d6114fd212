package api

import (
	"net/http"

	"gamata/fitness-core/internal/service"

	"github.com/gin-gonic/gin"
)

// AthleteHandler serves the athlete's own assignments and schedule.
type AthleteHandler struct {
	assignmentService service.AssignmentService
	scheduleService   service.ScheduleService
	now               service.Clock
}

func NewAthleteHandler(assignmentService service.AssignmentService, scheduleService service.ScheduleService, now service.Clock) *AthleteHandler {
	return &AthleteHandler{
		assignmentService: assignmentService,
		scheduleService:   scheduleService,
		now:               now,
	}
}

// --- DTOs ---

type PlanAssignmentResponse struct {
	Assignment AssignmentResponse `json:"assignment"`
	Plan       *PlanResponse      `json:"plan,omitempty"`
}

type PendingAndActiveResponse struct {
	Active  *PlanAssignmentResponse  `json:"active"`
	Pending []PlanAssignmentResponse `json:"pending"`
}

type ActivationResponse struct {
	Assignment     AssignmentResponse `json:"assignment"`
	DeactivatedIDs []string           `json:"deactivatedIds"`
}

type TodayResponse struct {
	Date      string            `json:"date"`
	DayOfWeek int               `json:"dayOfWeek"`
	PlanID    *string           `json:"planId"`
	PlanName  string            `json:"planName,omitempty"`
	IsRest    bool              `json:"isRest"`
	Workouts  []WorkoutResponse `json:"workouts"`
}

type WeekDayResponse struct {
	Date      string            `json:"date"`
	DayOfWeek int               `json:"dayOfWeek"`
	Workouts  []WorkoutResponse `json:"workouts"`
}

type WeekResponse struct {
	WeekStart string            `json:"weekStart"`
	PlanID    *string           `json:"planId"`
	PlanName  string            `json:"planName,omitempty"`
	Days      []WeekDayResponse `json:"days"`
}

func mapPlanAssignment(v service.PlanAssignmentView) PlanAssignmentResponse {
	resp := PlanAssignmentResponse{Assignment: MapAssignmentToResponse(&v.Assignment)}
	if v.Plan != nil {
		plan := MapPlanToResponse(v.Plan)
		resp.Plan = &plan
	}
	return resp
}

// MapPendingAndActiveToResponse converts the ledger overview to its DTO.
func MapPendingAndActiveToResponse(v *service.PendingAndActive) PendingAndActiveResponse {
	resp := PendingAndActiveResponse{Pending: make([]PlanAssignmentResponse, len(v.Pending))}
	if v.Active != nil {
		active := mapPlanAssignment(*v.Active)
		resp.Active = &active
	}
	for i, p := range v.Pending {
		resp.Pending[i] = mapPlanAssignment(p)
	}
	return resp
}

func MapTodayToResponse(v *service.TodayView) TodayResponse {
	return TodayResponse{
		Date:      formatDate(v.Date),
		DayOfWeek: v.DayOfWeek,
		PlanID:    hexOrNil(v.PlanID),
		PlanName:  v.PlanName,
		IsRest:    v.IsRest(),
		Workouts:  MapWorkoutsToResponse(v.Workouts),
	}
}

func MapWeekToResponse(v *service.WeekView) WeekResponse {
	days := make([]WeekDayResponse, len(v.Days))
	for i, d := range v.Days {
		days[i] = WeekDayResponse{
			Date:      formatDate(d.Date),
			DayOfWeek: d.DayOfWeek,
			Workouts:  MapWorkoutsToResponse(d.Workouts),
		}
	}
	return WeekResponse{
		WeekStart: formatDate(v.WeekStart),
		PlanID:    hexOrNil(v.PlanID),
		PlanName:  v.PlanName,
		Days:      days,
	}
}

// --- Handler Methods ---

// GetAssignments godoc
// @Summary The caller's active plan and pending offers
// @Tags Athlete
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PendingAndActiveResponse
// @Failure 401 {object} errorResponse "Unauthorized"
// @Router /me/assignments [get]
func (h *AthleteHandler) GetAssignments(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	overview, err := h.assignmentService.GetPendingAndActive(c.Request.Context(), userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPendingAndActiveToResponse(overview))
}

// ActivateAssignment godoc
// @Summary Accept a pending plan
// @Description Makes the assignment the caller's active plan. A previously active plan becomes inactive.
// @Tags Athlete
// @Produce json
// @Security BearerAuth
// @Param assignmentId path string true "Assignment ID"
// @Success 200 {object} ActivationResponse
// @Failure 404 {object} errorResponse "Assignment not found or not the caller's"
// @Failure 409 {object} errorResponse "Not pending, or the plan is archived"
// @Router /me/assignments/{assignmentId}/activate [post]
func (h *AthleteHandler) ActivateAssignment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathObjectID(c, "assignmentId")
	if !ok {
		return
	}

	result, err := h.assignmentService.Activate(c.Request.Context(), userID, assignmentID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ActivationResponse{
		Assignment:     MapAssignmentToResponse(result.Assignment),
		DeactivatedIDs: hexList(result.Deactivated),
	})
}

// DeclineAssignment godoc
// @Summary Decline a pending plan offer
// @Description Only the declined row changes.
// @Tags Athlete
// @Produce json
// @Security BearerAuth
// @Param assignmentId path string true "Assignment ID"
// @Success 200 {object} AssignmentResponse
// @Failure 404 {object} errorResponse "Assignment not found"
// @Failure 409 {object} errorResponse "Assignment is not pending"
// @Router /me/assignments/{assignmentId}/decline [post]
func (h *AthleteHandler) DeclineAssignment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathObjectID(c, "assignmentId")
	if !ok {
		return
	}

	assignment, err := h.assignmentService.Decline(c.Request.Context(), userID, assignmentID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapAssignmentToResponse(assignment))
}

// GetToday godoc
// @Summary Workouts scheduled for one day
// @Description Empty workouts means a rest day. The date defaults to today (UTC).
// @Tags Athlete
// @Produce json
// @Security BearerAuth
// @Param date query string false "Day (YYYY-MM-DD)"
// @Success 200 {object} TodayResponse
// @Failure 400 {object} errorResponse "Invalid date"
// @Router /me/today [get]
func (h *AthleteHandler) GetToday(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	date, ok := queryDate(c, "date", h.now())
	if !ok {
		return
	}

	view, err := h.scheduleService.Today(c.Request.Context(), userID, date)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapTodayToResponse(view))
}

// GetWeek godoc
// @Summary Seven-day schedule
// @Description Any date is moved back to its Monday.
// @Tags Athlete
// @Produce json
// @Security BearerAuth
// @Param week_start query string false "Any day of the week (YYYY-MM-DD)"
// @Success 200 {object} WeekResponse
// @Failure 400 {object} errorResponse "Invalid date"
// @Router /me/week [get]
func (h *AthleteHandler) GetWeek(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	weekStart, ok := queryDate(c, "week_start", h.now())
	if !ok {
		return
	}

	view, err := h.scheduleService.Week(c.Request.Context(), userID, weekStart)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapWeekToResponse(view))
}

