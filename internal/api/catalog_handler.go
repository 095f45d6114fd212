package api

import (
	"net/http"
	"strings"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CatalogHandler serves read-only workout lookups.
type CatalogHandler struct {
	catalog service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// WorkoutResponse is the DTO for returning catalog entries.
type WorkoutResponse struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	Description     string           `json:"description,omitempty"`
	TargetSets      *int             `json:"targetSets,omitempty"`
	TargetReps      *int             `json:"targetReps,omitempty"`
	SuggestedWeight *decimal.Decimal `json:"suggestedWeight,omitempty"`
	TargetDuration  *int             `json:"targetDuration,omitempty"`
	CardioType      string           `json:"cardioType,omitempty"`
	MuscleGroups    []string         `json:"muscleGroups"`
	IsArchived      bool             `json:"isArchived"`
}

// MapWorkoutToResponse converts a domain.Workout to WorkoutResponse DTO.
func MapWorkoutToResponse(w *domain.Workout) WorkoutResponse {
	if w == nil {
		return WorkoutResponse{}
	}
	groups := w.MuscleGroups
	if groups == nil {
		groups = []string{}
	}
	return WorkoutResponse{
		ID:              w.ID.Hex(),
		Name:            w.Name,
		Type:            string(w.Type),
		Description:     w.Description,
		TargetSets:      w.TargetSets,
		TargetReps:      w.TargetReps,
		SuggestedWeight: w.SuggestedWeight,
		TargetDuration:  w.TargetDuration,
		CardioType:      w.CardioType,
		MuscleGroups:    groups,
		IsArchived:      w.IsArchived,
	}
}

// MapWorkoutsToResponse converts a slice of domain.Workout to WorkoutResponse DTOs.
func MapWorkoutsToResponse(workouts []domain.Workout) []WorkoutResponse {
	responses := make([]WorkoutResponse, len(workouts))
	for i := range workouts {
		responses[i] = MapWorkoutToResponse(&workouts[i])
	}
	return responses
}

// GetWorkout godoc
// @Summary Get a catalog workout
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout ID"
// @Success 200 {object} WorkoutResponse
// @Failure 400 {object} errorResponse "Invalid workout ID format"
// @Failure 404 {object} errorResponse "Workout not found"
// @Router /workouts/{workoutId} [get]
func (h *CatalogHandler) GetWorkout(c *gin.Context) {
	workoutID, ok := pathObjectID(c, "workoutId")
	if !ok {
		return
	}

	workout, err := h.catalog.GetWorkout(c.Request.Context(), workoutID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapWorkoutToResponse(workout))
}

// GetWorkouts godoc
// @Summary Get several catalog workouts
// @Description Unknown ids are left out of the result; the rest keep the request order.
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param ids query string true "Comma-separated workout IDs"
// @Success 200 {array} WorkoutResponse
// @Failure 400 {object} errorResponse "Missing or malformed ids"
// @Router /workouts [get]
func (h *CatalogHandler) GetWorkouts(c *gin.Context) {
	raw := c.Query("ids")
	if raw == "" {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, "Query parameter ids is required.")
		return
	}
	ids, err := parseObjectIDs(strings.Split(raw, ","))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	workouts, err := h.catalog.GetWorkouts(c.Request.Context(), ids)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapWorkoutsToResponse(workouts))
}
