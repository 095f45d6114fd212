package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gamata/fitness-core/internal/cache"
	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Service Interface ---

// CatalogService is the read side of the workout catalog.
type CatalogService interface {
	GetWorkout(ctx context.Context, workoutID primitive.ObjectID) (*domain.Workout, error)
	// GetWorkouts returns the known workouts in request order, skipping unknown ids.
	GetWorkouts(ctx context.Context, workoutIDs []primitive.ObjectID) ([]domain.Workout, error)
}

// --- Service Implementation ---

type catalogService struct {
	workoutRepo repository.WorkoutRepository
	cache       *cache.RedisCache // nil disables caching
	cacheTTL    time.Duration
}

// NewCatalogService creates a catalog reader. Pass a nil cache to always hit the repository.
func NewCatalogService(workoutRepo repository.WorkoutRepository, redisCache *cache.RedisCache, cacheTTL time.Duration) CatalogService {
	return &catalogService{
		workoutRepo: workoutRepo,
		cache:       redisCache,
		cacheTTL:    cacheTTL,
	}
}

func (s *catalogService) GetWorkout(ctx context.Context, workoutID primitive.ObjectID) (*domain.Workout, error) {
	load := func() (*domain.Workout, error) {
		workout, err := s.workoutRepo.GetByID(ctx, workoutID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrWorkoutNotFound
			}
			return nil, fmt.Errorf("load workout: %w", err)
		}
		return workout, nil
	}

	if s.cache == nil {
		return load()
	}
	return cache.GetOrSet(s.cache, ctx, "workout:"+workoutID.Hex(), s.cacheTTL, load)
}

func (s *catalogService) GetWorkouts(ctx context.Context, workoutIDs []primitive.ObjectID) ([]domain.Workout, error) {
	ids := dedupeIDs(workoutIDs)
	workouts := make([]domain.Workout, 0, len(ids))
	if len(ids) == 0 {
		return workouts, nil
	}

	if s.cache != nil {
		for _, id := range ids {
			workout, err := s.GetWorkout(ctx, id)
			if errors.Is(err, ErrWorkoutNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			workouts = append(workouts, *workout)
		}
		return workouts, nil
	}

	found, err := s.workoutRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load workouts: %w", err)
	}
	byID := make(map[primitive.ObjectID]domain.Workout, len(found))
	for _, w := range found {
		byID[w.ID] = w
	}
	for _, id := range ids {
		if w, ok := byID[id]; ok {
			workouts = append(workouts, w)
		}
	}
	return workouts, nil
}

// workoutIndex keys workouts by id for hydration.
func workoutIndex(workouts []domain.Workout) map[primitive.ObjectID]domain.Workout {
	index := make(map[primitive.ObjectID]domain.Workout, len(workouts))
	for _, w := range workouts {
		index[w.ID] = w
	}
	return index
}
