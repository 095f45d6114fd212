package api

import (
	"net/http"
	"strconv"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CoachHandler serves plan authoring and assignment for coaches. Every route acts on
// plans owned by the caller.
type CoachHandler struct {
	planService       service.PlanService
	assignmentService service.AssignmentService
}

func NewCoachHandler(planService service.PlanService, assignmentService service.AssignmentService) *CoachHandler {
	return &CoachHandler{
		planService:       planService,
		assignmentService: assignmentService,
	}
}

// --- DTOs for Plan Management ---

type PlanDayRequest struct {
	DayOfWeek  *int     `json:"dayOfWeek" binding:"required"` // Monday = 0 ... Sunday = 6
	WorkoutIDs []string `json:"workoutIds"`
}

type CreatePlanRequest struct {
	Name      string           `json:"name" binding:"required"`
	StartDate string           `json:"startDate" binding:"required"` // YYYY-MM-DD
	EndDate   string           `json:"endDate" binding:"required"`
	Days      []PlanDayRequest `json:"days" binding:"dive"`
}

type UpdatePlanDaysRequest struct {
	Days []PlanDayRequest `json:"days" binding:"dive"`
}

type AssignPlanRequest struct {
	UserIDs []string `json:"userIds" binding:"required"`
}

type PlanDayResponse struct {
	DayOfWeek  int      `json:"dayOfWeek"`
	WorkoutIDs []string `json:"workoutIds"`
}

type PlanResponse struct {
	ID         string            `json:"id"`
	CoachID    string            `json:"coachId"`
	Name       string            `json:"name"`
	StartDate  string            `json:"startDate"`
	EndDate    string            `json:"endDate"`
	IsArchived bool              `json:"isArchived"`
	ArchivedAt *time.Time        `json:"archivedAt,omitempty"`
	Days       []PlanDayResponse `json:"days"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type AssignmentResponse struct {
	ID            string     `json:"id"`
	PlanID        string     `json:"planId"`
	UserID        string     `json:"userId"`
	Status        string     `json:"status"`
	AssignedAt    time.Time  `json:"assignedAt"`
	ActivatedAt   *time.Time `json:"activatedAt,omitempty"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
}

// MapPlanToResponse converts domain.Plan to PlanResponse DTO.
func MapPlanToResponse(p *domain.Plan) PlanResponse {
	if p == nil {
		return PlanResponse{}
	}
	days := make([]PlanDayResponse, len(p.Days))
	for i, d := range p.Days {
		days[i] = PlanDayResponse{DayOfWeek: d.DayOfWeek, WorkoutIDs: hexList(d.WorkoutIDs)}
	}
	return PlanResponse{
		ID:         p.ID.Hex(),
		CoachID:    p.CoachID.Hex(),
		Name:       p.Name,
		StartDate:  formatDate(p.StartDate),
		EndDate:    formatDate(p.EndDate),
		IsArchived: p.IsArchived,
		ArchivedAt: p.ArchivedAt,
		Days:       days,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func MapPlansToResponse(plans []domain.Plan) []PlanResponse {
	responses := make([]PlanResponse, len(plans))
	for i := range plans {
		responses[i] = MapPlanToResponse(&plans[i])
	}
	return responses
}

// MapAssignmentToResponse converts domain.Assignment to AssignmentResponse DTO.
func MapAssignmentToResponse(a *domain.Assignment) AssignmentResponse {
	if a == nil {
		return AssignmentResponse{}
	}
	return AssignmentResponse{
		ID:            a.ID.Hex(),
		PlanID:        a.PlanID.Hex(),
		UserID:        a.UserID.Hex(),
		Status:        string(a.Status),
		AssignedAt:    a.AssignedAt,
		ActivatedAt:   a.ActivatedAt,
		DeactivatedAt: a.DeactivatedAt,
	}
}

func MapAssignmentsToResponse(assignments []domain.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, len(assignments))
	for i := range assignments {
		responses[i] = MapAssignmentToResponse(&assignments[i])
	}
	return responses
}

func toPlanDays(req []PlanDayRequest) ([]domain.PlanDay, error) {
	days := make([]domain.PlanDay, 0, len(req))
	for _, d := range req {
		ids, err := parseObjectIDs(d.WorkoutIDs)
		if err != nil {
			return nil, err
		}
		days = append(days, domain.PlanDay{DayOfWeek: *d.DayOfWeek, WorkoutIDs: ids})
	}
	return days, nil
}

// --- Handler Methods for Plan Management ---

// CreatePlan godoc
// @Summary Create a weekly plan template
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planRequest body CreatePlanRequest true "Plan details"
// @Success 201 {object} PlanResponse
// @Failure 400 {object} errorResponse "Invalid input, unknown or archived workout"
// @Failure 401 {object} errorResponse "Unauthorized"
// @Router /coach/plans [post]
func (h *CoachHandler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Validation error: "+err.Error())
		return
	}
	coachID, ok := callerID(c)
	if !ok {
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Invalid startDate, expected YYYY-MM-DD.")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Invalid endDate, expected YYYY-MM-DD.")
		return
	}
	days, err := toPlanDays(req.Days)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Invalid workoutIds: "+err.Error())
		return
	}

	plan, err := h.planService.CreatePlan(c.Request.Context(), coachID, service.PlanInput{
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		Days:      days,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapPlanToResponse(plan))
}

// ListPlans godoc
// @Summary List the caller's plans
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param include_archived query bool false "Include archived plans"
// @Success 200 {array} PlanResponse
// @Failure 400 {object} errorResponse "Invalid include_archived"
// @Router /coach/plans [get]
func (h *CoachHandler) ListPlans(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	includeArchived := false
	if raw := c.Query("include_archived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Invalid include_archived, expected true or false.")
			return
		}
		includeArchived = v
	}

	plans, err := h.planService.ListPlans(c.Request.Context(), coachID, includeArchived)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlansToResponse(plans))
}

// GetPlan godoc
// @Summary Get one of the caller's plans
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} PlanResponse
// @Failure 404 {object} errorResponse "Plan not found or not owned"
// @Router /coach/plans/{planId} [get]
func (h *CoachHandler) GetPlan(c *gin.Context) {
	coachID, planID, ok := coachAndPlan(c)
	if !ok {
		return
	}
	plan, err := h.planService.GetPlan(c.Request.Context(), coachID, planID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// UpdatePlanDays godoc
// @Summary Replace the weekly template of a plan
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param daysRequest body UpdatePlanDaysRequest true "New days"
// @Success 200 {object} PlanResponse
// @Failure 404 {object} errorResponse "Plan not found or not owned"
// @Failure 409 {object} errorResponse "Plan is archived"
// @Router /coach/plans/{planId}/days [put]
func (h *CoachHandler) UpdatePlanDays(c *gin.Context) {
	coachID, planID, ok := coachAndPlan(c)
	if !ok {
		return
	}
	var req UpdatePlanDaysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Validation error: "+err.Error())
		return
	}
	days, err := toPlanDays(req.Days)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Invalid workoutIds: "+err.Error())
		return
	}

	plan, err := h.planService.UpdatePlanDays(c.Request.Context(), coachID, planID, days)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// ArchivePlan godoc
// @Summary Archive a plan
// @Description Archived plans cannot be assigned or edited. Archiving twice is a no-op.
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} PlanResponse
// @Failure 404 {object} errorResponse "Plan not found or not owned"
// @Router /coach/plans/{planId}/archive [post]
func (h *CoachHandler) ArchivePlan(c *gin.Context) {
	coachID, planID, ok := coachAndPlan(c)
	if !ok {
		return
	}
	plan, err := h.planService.ArchivePlan(c.Request.Context(), coachID, planID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// UnarchivePlan godoc
// @Summary Restore an archived plan
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} PlanResponse
// @Failure 404 {object} errorResponse "Plan not found or not owned"
// @Router /coach/plans/{planId}/unarchive [post]
func (h *CoachHandler) UnarchivePlan(c *gin.Context) {
	coachID, planID, ok := coachAndPlan(c)
	if !ok {
		return
	}
	plan, err := h.planService.UnarchivePlan(c.Request.Context(), coachID, planID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapPlanToResponse(plan))
}

// AssignPlan godoc
// @Summary Offer a plan to athletes
// @Description Creates pending assignments. Athletes already holding a live assignment of the plan keep it.
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param assignRequest body AssignPlanRequest true "Athlete ids"
// @Success 200 {array} AssignmentResponse "One row per requested athlete"
// @Failure 400 {object} errorResponse "No athletes given"
// @Failure 404 {object} errorResponse "Plan not found or not owned"
// @Failure 409 {object} errorResponse "Plan is archived"
// @Router /coach/plans/{planId}/assign [post]
func (h *CoachHandler) AssignPlan(c *gin.Context) {
	coachID, planID, ok := coachAndPlan(c)
	if !ok {
		return
	}
	var req AssignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Validation error: "+err.Error())
		return
	}
	userIDs, err := parseObjectIDs(req.UserIDs)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Invalid userIds: "+err.Error())
		return
	}

	assignments, err := h.assignmentService.Assign(c.Request.Context(), coachID, planID, userIDs)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapAssignmentsToResponse(assignments))
}

// GetPlanAssignments godoc
// @Summary Per-athlete status of a plan
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {array} AssignmentResponse
// @Failure 404 {object} errorResponse "Plan not found or not owned"
// @Router /coach/plans/{planId}/assignments [get]
func (h *CoachHandler) GetPlanAssignments(c *gin.Context) {
	coachID, planID, ok := coachAndPlan(c)
	if !ok {
		return
	}
	assignments, err := h.planService.PlanAssignments(c.Request.Context(), coachID, planID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapAssignmentsToResponse(assignments))
}

func coachAndPlan(c *gin.Context) (primitive.ObjectID, primitive.ObjectID, bool) {
	coachID, ok := callerID(c)
	if !ok {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return coachID, planID, true
}
