package api

import (
	"net/http"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionHandler serves the caller's workout sessions.
type SessionHandler struct {
	sessionService service.SessionService
}

func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// --- DTOs for Sessions ---

type CreateSessionRequest struct {
	WorkoutID   string  `json:"workoutId" binding:"required"`
	SessionType string  `json:"sessionType" binding:"required,oneof=assigned swap adhoc"`
	PlanID      *string `json:"planId"`
}

// LogRequest is a partial log write. Weight accepts a JSON string or number.
type LogRequest struct {
	Sets     *int             `json:"sets"`
	Reps     *int             `json:"reps"`
	Weight   *decimal.Decimal `json:"weight"`
	Duration *int             `json:"duration"` // seconds
	Notes    *string          `json:"notes"`
}

func (r LogRequest) fields() domain.LogFields {
	return domain.LogFields{
		Sets:     r.Sets,
		Reps:     r.Reps,
		Weight:   r.Weight,
		Duration: r.Duration,
		Notes:    r.Notes,
	}
}

type LogResponse struct {
	ID        string           `json:"id"`
	Sets      *int             `json:"sets,omitempty"`
	Reps      *int             `json:"reps,omitempty"`
	Weight    *decimal.Decimal `json:"weight,omitempty"`
	Duration  *int             `json:"duration,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
	LoggedAt  time.Time        `json:"loggedAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type SessionResponse struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	WorkoutID   string        `json:"workoutId"`
	PlanID      *string       `json:"planId"`
	SessionType string        `json:"sessionType"`
	Status      string        `json:"status"` // open | completed
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Logs        []LogResponse `json:"logs"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// MapSessionToResponse converts domain.Session to SessionResponse DTO.
func MapSessionToResponse(s *domain.Session) SessionResponse {
	if s == nil {
		return SessionResponse{}
	}
	logs := make([]LogResponse, len(s.Logs))
	for i, l := range s.Logs {
		logs[i] = LogResponse{
			ID:        l.ID.Hex(),
			Sets:      l.Sets,
			Reps:      l.Reps,
			Weight:    l.Weight,
			Duration:  l.Duration,
			Notes:     l.Notes,
			LoggedAt:  l.LoggedAt,
			UpdatedAt: l.UpdatedAt,
		}
	}
	status := "open"
	if s.IsCompleted() {
		status = "completed"
	}
	return SessionResponse{
		ID:          s.ID.Hex(),
		UserID:      s.UserID.Hex(),
		WorkoutID:   s.WorkoutID.Hex(),
		PlanID:      hexOrNil(s.PlanID),
		SessionType: string(s.SessionType),
		Status:      status,
		CompletedAt: s.CompletedAt,
		Logs:        logs,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func MapSessionsToResponse(sessions []domain.Session) []SessionResponse {
	responses := make([]SessionResponse, len(sessions))
	for i := range sessions {
		responses[i] = MapSessionToResponse(&sessions[i])
	}
	return responses
}

// --- Handler Methods ---

// CreateSession godoc
// @Summary Open a workout session
// @Description assigned and swap sessions must reference the caller's active plan; adhoc sessions must not.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionRequest body CreateSessionRequest true "Session details"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} errorResponse "Invalid input or inconsistent plan reference"
// @Failure 404 {object} errorResponse "Workout not found"
// @Failure 409 {object} errorResponse "Plan is not the caller's active plan"
// @Router /me/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, ok := callerID(c)
	if !ok {
		return
	}

	workoutID, err := primitive.ObjectIDFromHex(req.WorkoutID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Invalid workoutId format.")
		return
	}
	input := service.CreateSessionInput{WorkoutID: workoutID, SessionType: domain.SessionType(req.SessionType)}
	if req.PlanID != nil {
		planID, err := primitive.ObjectIDFromHex(*req.PlanID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Invalid planId format.")
			return
		}
		input.PlanID = &planID
	}

	session, err := h.sessionService.Create(c.Request.Context(), userID, input)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapSessionToResponse(session))
}

// ListSessions godoc
// @Summary Completed sessions, newest first
// @Description Both bounds are calendar dates and inclusive.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {array} SessionResponse
// @Failure 400 {object} errorResponse "Invalid date range"
// @Router /me/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
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
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}

	sessions, err := h.sessionService.ListCompleted(c.Request.Context(), userID, from, to)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapSessionsToResponse(sessions))
}

// GetSession godoc
// @Summary Get one of the caller's sessions
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} errorResponse "Session not found"
// @Router /me/sessions/{sessionId} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, sessionID, ok := callerAndSession(c)
	if !ok {
		return
	}
	session, err := h.sessionService.Get(c.Request.Context(), userID, sessionID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapSessionToResponse(session))
}

// AddLog godoc
// @Summary Record the session's log
// @Description Writes the primary log. Repeating the call updates the same log.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param logRequest body LogRequest true "Log fields"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} errorResponse "No fields, or a field out of range"
// @Failure 404 {object} errorResponse "Session not found"
// @Failure 409 {object} errorResponse "Session already completed"
// @Router /me/sessions/{sessionId}/logs [post]
func (h *SessionHandler) AddLog(c *gin.Context) {
	userID, sessionID, ok := callerAndSession(c)
	if !ok {
		return
	}
	var req LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Validation error: "+err.Error())
		return
	}

	session, err := h.sessionService.AddLog(c.Request.Context(), userID, sessionID, req.fields())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapSessionToResponse(session))
}

// UpdateLog godoc
// @Summary Partially update the session log
// @Description Omitted fields keep their value. Repeating the same update is a no-op.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param logId path string true "Log ID"
// @Param logRequest body LogRequest true "Changed fields"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} errorResponse "Invalid field values"
// @Failure 404 {object} errorResponse "Session or log not found"
// @Failure 409 {object} errorResponse "Session already completed"
// @Router /me/sessions/{sessionId}/logs/{logId} [put]
func (h *SessionHandler) UpdateLog(c *gin.Context) {
	userID, sessionID, ok := callerAndSession(c)
	if !ok {
		return
	}
	logID, ok := pathObjectID(c, "logId")
	if !ok {
		return
	}
	var req LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Validation error: "+err.Error())
		return
	}

	session, err := h.sessionService.UpdateLog(c.Request.Context(), userID, sessionID, logID, req.fields())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapSessionToResponse(session))
}

// CompleteSession godoc
// @Summary Mark a session completed
// @Description Completion is irreversible.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} errorResponse "Session not found"
// @Failure 409 {object} errorResponse "Session already completed"
// @Router /me/sessions/{sessionId}/complete [post]
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	userID, sessionID, ok := callerAndSession(c)
	if !ok {
		return
	}
	session, err := h.sessionService.Complete(c.Request.Context(), userID, sessionID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapSessionToResponse(session))
}

func callerAndSession(c *gin.Context) (primitive.ObjectID, primitive.ObjectID, bool) {
	userID, ok := callerID(c)
	if !ok {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return userID, sessionID, true
}
