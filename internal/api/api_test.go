package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gamata/fitness-core/internal/domain"
	"gamata/fitness-core/internal/lock"
	"gamata/fitness-core/internal/repository/sqlite"
	"gamata/fitness-core/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	testSecret = "test-secret"
	testIssuer = "identity.test"
)

var baseTime = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) // Monday

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	db     *sqlite.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sqlite.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := func() time.Time { return baseTime }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locker := lock.NewLocalLocker()
	workoutRepo := sqlite.NewWorkoutRepository(db)
	planRepo := sqlite.NewPlanRepository(db)
	assignmentRepo := sqlite.NewAssignmentRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)
	catalog := service.NewCatalogService(workoutRepo, nil, 0)

	router := gin.New()
	SetupRoutes(router, RouteOptions{JWTSecret: testSecret, JWTIssuer: testIssuer, MetricsEnabled: true}, Services{
		Catalog:     catalog,
		Plans:       service.NewPlanService(planRepo, assignmentRepo, catalog, now, logger),
		Assignments: service.NewAssignmentService(assignmentRepo, planRepo, locker, now, logger),
		Schedule:    service.NewScheduleService(assignmentRepo, planRepo, catalog),
		Sessions:    service.NewSessionService(sessionRepo, assignmentRepo, planRepo, catalog, locker, now, logger),
		Stats:       service.NewStatsService(sessionRepo, assignmentRepo, planRepo, catalog, now),
		Now:         now,
		Health:      db.Health,
	})
	return &testServer{router: router, db: db}
}

func (s *testServer) workout(t *testing.T, name string) *domain.Workout {
	t.Helper()
	w := &domain.Workout{Name: name, Type: domain.WorkoutTypeStrength}
	if _, err := sqlite.NewWorkoutRepository(s.db).Create(context.Background(), w); err != nil {
		t.Fatalf("Failed to create workout: %v", err)
	}
	return w
}

func signToken(t *testing.T, userID string, role domain.Role, issuer string, expiresAt time.Time) string {
	t.Helper()
	claims := jwtClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func tokenFor(t *testing.T, userID primitive.ObjectID, role domain.Role) string {
	return signToken(t, userID.Hex(), role, testIssuer, time.Now().Add(time.Hour))
}

// do sends a request and decodes the JSON body into out when out is non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("Failed to decode %s %s response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t)
	userID := primitive.NewObjectID()

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"expired", signToken(t, userID.Hex(), domain.RoleUser, testIssuer, time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"wrong issuer", signToken(t, userID.Hex(), domain.RoleUser, "elsewhere", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"bad uid", signToken(t, "nope", domain.RoleUser, testIssuer, time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"valid", tokenFor(t, userID, domain.RoleCoach), http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body map[string]any
			code := srv.do(t, http.MethodGet, "/api/v1/me", tc.token, nil, &body)
			if code != tc.want {
				t.Fatalf("Expected %d, got %d (%v)", tc.want, code, body)
			}
			if code == http.StatusOK && (body["userId"] != userID.Hex() || body["role"] != "coach") {
				t.Errorf("Unexpected identity %v", body)
			}
			if code == http.StatusUnauthorized && body["code"] != CodeUnauthorized {
				t.Errorf("Expected code %q, got %v", CodeUnauthorized, body["code"])
			}
		})
	}
}

func TestPingAndRequestID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got := w.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("Expected request id echoed, got %q", got)
	}

	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("http_requests_total")) {
		t.Errorf("Expected prometheus output, got %d", w.Code)
	}
}

func TestPingReportsUnreachableStore(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, RouteOptions{JWTSecret: testSecret}, Services{
		Health: func(ctx context.Context) error { return errors.New("connection refused") },
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != CodeUnavailable {
		t.Errorf("Expected unavailable code, got %q (%v)", w.Body.String(), err)
	}

	// A closed database fails the check too.
	srv := newTestServer(t)
	srv.db.Close()
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 after close, got %d", w.Code)
	}
}

func TestCoachToAthleteFlow(t *testing.T) {
	srv := newTestServer(t)
	squat := srv.workout(t, "Squat")
	coachID, athleteID := primitive.NewObjectID(), primitive.NewObjectID()
	coach := tokenFor(t, coachID, domain.RoleCoach)
	athlete := tokenFor(t, athleteID, domain.RoleUser)

	// Coach creates and assigns a plan.
	var plan PlanResponse
	code := srv.do(t, http.MethodPost, "/api/v1/coach/plans", coach, map[string]any{
		"name":      "Strength block",
		"startDate": "2024-03-04",
		"endDate":   "2024-03-31",
		"days":      []map[string]any{{"dayOfWeek": 0, "workoutIds": []string{squat.ID.Hex()}}},
	}, &plan)
	if code != http.StatusCreated {
		t.Fatalf("Expected 201 creating plan, got %d", code)
	}
	if plan.StartDate != "2024-03-04" || len(plan.Days) != 1 {
		t.Errorf("Unexpected plan %+v", plan)
	}

	var assigned []AssignmentResponse
	code = srv.do(t, http.MethodPost, "/api/v1/coach/plans/"+plan.ID+"/assign", coach, map[string]any{
		"userIds": []string{athleteID.Hex()},
	}, &assigned)
	if code != http.StatusOK || len(assigned) != 1 || assigned[0].Status != "pending" {
		t.Fatalf("Expected one pending assignment, got %d %+v", code, assigned)
	}

	// Athlete sees the offer and accepts it.
	var overview PendingAndActiveResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/assignments", athlete, nil, &overview); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if overview.Active != nil || len(overview.Pending) != 1 || overview.Pending[0].Plan.Name != "Strength block" {
		t.Fatalf("Unexpected overview %+v", overview)
	}

	var activation ActivationResponse
	code = srv.do(t, http.MethodPost, "/api/v1/me/assignments/"+assigned[0].ID+"/activate", athlete, nil, &activation)
	if code != http.StatusOK || activation.Assignment.Status != "active" || len(activation.DeactivatedIDs) != 0 {
		t.Fatalf("Unexpected activation %d %+v", code, activation)
	}

	var errBody errorResponse
	code = srv.do(t, http.MethodPost, "/api/v1/me/assignments/"+assigned[0].ID+"/activate", athlete, nil, &errBody)
	if code != http.StatusConflict || errBody.Code != CodeInvalidTransition {
		t.Errorf("Expected 409 invalid_transition re-activating, got %d %+v", code, errBody)
	}

	var today TodayResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/today?date=2024-03-04", athlete, nil, &today); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if today.IsRest || len(today.Workouts) != 1 || today.PlanID == nil || *today.PlanID != plan.ID {
		t.Fatalf("Expected squat today, got %+v", today)
	}

	var week WeekResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/week?week_start=2024-03-06", athlete, nil, &week); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if week.WeekStart != "2024-03-04" || len(week.Days) != 7 || len(week.Days[1].Workouts) != 0 {
		t.Errorf("Unexpected week %+v", week)
	}

	// Athlete trains.
	var session SessionResponse
	code = srv.do(t, http.MethodPost, "/api/v1/me/sessions", athlete, map[string]any{
		"workoutId":   squat.ID.Hex(),
		"sessionType": "assigned",
		"planId":      plan.ID,
	}, &session)
	if code != http.StatusCreated || session.Status != "open" {
		t.Fatalf("Expected an open session, got %d %+v", code, session)
	}

	code = srv.do(t, http.MethodPost, "/api/v1/me/sessions/"+session.ID+"/logs", athlete, map[string]any{
		"sets": 5, "reps": 5, "weight": "100.5",
	}, &session)
	if code != http.StatusOK || len(session.Logs) != 1 || session.Logs[0].Weight.String() != "100.5" {
		t.Fatalf("Expected one log at 100.5, got %d %+v", code, session.Logs)
	}

	code = srv.do(t, http.MethodPut, "/api/v1/me/sessions/"+session.ID+"/logs/"+session.Logs[0].ID, athlete, map[string]any{
		"reps": 4,
	}, &session)
	if code != http.StatusOK || *session.Logs[0].Reps != 4 || *session.Logs[0].Sets != 5 {
		t.Fatalf("Expected partial update, got %d %+v", code, session.Logs)
	}

	if code := srv.do(t, http.MethodPost, "/api/v1/me/sessions/"+session.ID+"/complete", athlete, nil, &session); code != http.StatusOK {
		t.Fatalf("Expected 200 completing, got %d", code)
	}
	if session.Status != "completed" || session.CompletedAt == nil {
		t.Errorf("Expected completed session, got %+v", session)
	}

	code = srv.do(t, http.MethodPost, "/api/v1/me/sessions/"+session.ID+"/complete", athlete, nil, &errBody)
	if code != http.StatusConflict || errBody.Code != CodeInvalidTransition {
		t.Errorf("Expected 409 invalid_transition on second complete, got %d %+v", code, errBody)
	}

	// Stats reflect the session.
	var streak StreakResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/stats/streak", athlete, nil, &streak); code != http.StatusOK || streak.Streak != 1 {
		t.Errorf("Expected streak 1, got %d %+v", code, streak)
	}
	var weekly WeeklyCompletionResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/stats/weekly-completion?week_start=2024-03-04", athlete, nil, &weekly); code != http.StatusOK || weekly.Percent != 100 {
		t.Errorf("Expected 100%%, got %d %+v", code, weekly)
	}
	var record PersonalRecordResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/stats/personal-records/squat", athlete, nil, &record); code != http.StatusOK || record.Weight.String() != "100.5" {
		t.Errorf("Expected squat record 100.5, got %d %+v", code, record)
	}
	var quick QuickStatsResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/stats/quick", athlete, nil, &quick); code != http.StatusOK || quick.TotalCompleted != 1 || quick.CurrentStreak != 1 {
		t.Errorf("Unexpected quick stats %d %+v", code, quick)
	}
	var history []SessionResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/sessions?from=2024-03-04&to=2024-03-04", athlete, nil, &history); code != http.StatusOK || len(history) != 1 {
		t.Errorf("Expected one completed session in range, got %d %d", code, len(history))
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	coachID := primitive.NewObjectID()
	coach := tokenFor(t, coachID, domain.RoleCoach)
	stranger := tokenFor(t, primitive.NewObjectID(), domain.RoleCoach)

	var plan PlanResponse
	code := srv.do(t, http.MethodPost, "/api/v1/coach/plans", coach, map[string]any{
		"name": "Empty", "startDate": "2024-03-04", "endDate": "2024-03-10",
	}, &plan)
	if code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", code)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		body     any
		wantCode int
		wantKind string
	}{
		{"malformed id", http.MethodGet, "/api/v1/me/sessions/xyz", coach, nil, http.StatusBadRequest, CodeBadRequest},
		{"missing session", http.MethodGet, "/api/v1/me/sessions/" + primitive.NewObjectID().Hex(), coach, nil, http.StatusNotFound, CodeNotFound},
		{"foreign plan", http.MethodGet, "/api/v1/coach/plans/" + plan.ID, stranger, nil, http.StatusNotFound, CodeNotFound},
		{"no athletes", http.MethodPost, "/api/v1/coach/plans/" + plan.ID + "/assign", coach, map[string]any{"userIds": []string{}}, http.StatusBadRequest, CodeValidation},
		{"bad date", http.MethodGet, "/api/v1/me/today?date=04-03-2024", coach, nil, http.StatusBadRequest, CodeBadRequest},
		{"bad session type", http.MethodPost, "/api/v1/me/sessions", coach, map[string]any{"workoutId": primitive.NewObjectID().Hex(), "sessionType": "bonus"}, http.StatusBadRequest, CodeBadRequest},
		{"unknown workout", http.MethodGet, "/api/v1/workouts/" + primitive.NewObjectID().Hex(), coach, nil, http.StatusNotFound, CodeNotFound},
		{"no record", http.MethodGet, "/api/v1/me/stats/personal-records/deadlift", coach, nil, http.StatusNotFound, CodeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body errorResponse
			code := srv.do(t, tc.method, tc.path, tc.token, tc.body, &body)
			if code != tc.wantCode || body.Code != tc.wantKind {
				t.Errorf("Expected %d %s, got %d %+v", tc.wantCode, tc.wantKind, code, body)
			}
		})
	}

	if code := srv.do(t, http.MethodPost, "/api/v1/coach/plans/"+plan.ID+"/archive", coach, nil, &plan); code != http.StatusOK || !plan.IsArchived {
		t.Fatalf("Expected archived plan, got %d %+v", code, plan)
	}
	var body errorResponse
	code = srv.do(t, http.MethodPost, "/api/v1/coach/plans/"+plan.ID+"/assign", coach, map[string]any{
		"userIds": []string{primitive.NewObjectID().Hex()},
	}, &body)
	if code != http.StatusConflict || body.Code != CodeConflict {
		t.Errorf("Expected 409 conflict assigning an archived plan, got %d %+v", code, body)
	}
}

func TestCatalogLookup(t *testing.T) {
	srv := newTestServer(t)
	squat := srv.workout(t, "Squat")
	bench := srv.workout(t, "Bench Press")
	token := tokenFor(t, primitive.NewObjectID(), domain.RoleUser)

	var one WorkoutResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/workouts/"+squat.ID.Hex(), token, nil, &one); code != http.StatusOK || one.Name != "Squat" {
		t.Errorf("Expected squat, got %d %+v", code, one)
	}

	var many []WorkoutResponse
	path := "/api/v1/workouts?ids=" + bench.ID.Hex() + "," + primitive.NewObjectID().Hex() + "," + squat.ID.Hex()
	if code := srv.do(t, http.MethodGet, path, token, nil, &many); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if len(many) != 2 || many[0].Name != "Bench Press" || many[1].Name != "Squat" {
		t.Errorf("Expected known workouts in request order, got %+v", many)
	}
}

func TestProgressStats(t *testing.T) {
	srv := newTestServer(t)
	row := &domain.Workout{Name: "Row", Type: domain.WorkoutTypeStrength, MuscleGroups: []string{"Back", "Biceps"}}
	if _, err := sqlite.NewWorkoutRepository(srv.db).Create(context.Background(), row); err != nil {
		t.Fatalf("Failed to create workout: %v", err)
	}
	athlete := tokenFor(t, primitive.NewObjectID(), domain.RoleUser)

	var session SessionResponse
	code := srv.do(t, http.MethodPost, "/api/v1/me/sessions", athlete, map[string]any{
		"workoutId": row.ID.Hex(), "sessionType": "adhoc",
	}, &session)
	if code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", code)
	}
	srv.do(t, http.MethodPost, "/api/v1/me/sessions/"+session.ID+"/logs", athlete, map[string]any{
		"sets": 3, "reps": 10, "weight": "42.5",
	}, nil)
	if code := srv.do(t, http.MethodPost, "/api/v1/me/sessions/"+session.ID+"/complete", athlete, nil, nil); code != http.StatusOK {
		t.Fatalf("Expected 200 completing, got %d", code)
	}

	var groups MuscleGroupProgressResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/stats/muscle-groups?from=2024-03-01&to=2024-03-04", athlete, nil, &groups); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if groups.From != "2024-03-01" || len(groups.Groups) != 2 || groups.Groups[0].MuscleGroup != "Back" ||
		groups.Groups[0].TotalVolume.String() != "1275" || groups.Groups[1].TotalSessions != 1 {
		t.Errorf("Unexpected muscle groups %+v", groups)
	}

	var freq FrequencyResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/stats/frequency?period=monthly&from=2024-02-10&to=2024-03-04", athlete, nil, &freq); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if freq.Period != "monthly" || len(freq.Buckets) != 2 || freq.Buckets[0].Start != "2024-02-01" || freq.Buckets[1].Sessions != 1 || freq.TotalSessions != 1 {
		t.Errorf("Unexpected frequency %+v", freq)
	}

	var errBody errorResponse
	if code := srv.do(t, http.MethodGet, "/api/v1/me/stats/frequency?period=daily", athlete, nil, &errBody); code != http.StatusBadRequest || errBody.Code != CodeValidation {
		t.Errorf("Expected 400 validation_error for an unknown period, got %d %+v", code, errBody)
	}
}

func TestUpdateLogNullLeavesFieldUnchanged(t *testing.T) {
	srv := newTestServer(t)
	squat := srv.workout(t, "Squat")
	athlete := tokenFor(t, primitive.NewObjectID(), domain.RoleUser)

	var session SessionResponse
	srv.do(t, http.MethodPost, "/api/v1/me/sessions", athlete, map[string]any{
		"workoutId": squat.ID.Hex(), "sessionType": "adhoc",
	}, &session)
	code := srv.do(t, http.MethodPost, "/api/v1/me/sessions/"+session.ID+"/logs", athlete, map[string]any{
		"sets": 5, "weight": "60", "notes": "felt heavy",
	}, &session)
	if code != http.StatusOK || len(session.Logs) != 1 {
		t.Fatalf("Expected one log, got %d %+v", code, session.Logs)
	}

	// null and blank notes both mean "leave as is".
	code = srv.do(t, http.MethodPut, "/api/v1/me/sessions/"+session.ID+"/logs/"+session.Logs[0].ID, athlete, map[string]any{
		"sets": nil, "weight": nil, "notes": "  ", "reps": 3,
	}, &session)
	if code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	got := session.Logs[0]
	if got.Sets == nil || *got.Sets != 5 || got.Weight == nil || got.Weight.String() != "60" ||
		got.Notes == nil || *got.Notes != "felt heavy" || got.Reps == nil || *got.Reps != 3 {
		t.Errorf("Expected only reps to change, got %+v", got)
	}

	var errBody errorResponse
	code = srv.do(t, http.MethodPut, "/api/v1/me/sessions/"+session.ID+"/logs/"+session.Logs[0].ID, athlete, map[string]any{
		"sets": nil,
	}, &errBody)
	if code != http.StatusBadRequest || errBody.Code != CodeValidation {
		t.Errorf("Expected 400 validation_error for an all-null update, got %d %+v", code, errBody)
	}
}

