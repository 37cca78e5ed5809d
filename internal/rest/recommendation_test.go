package rest

import (
	"context"
	"errors"
	"fmt"
	"hybridReco/domain"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type fakeService struct {
	recs       []domain.Recommendation
	err        error
	recorded   *domain.Interaction
	gotLimit   int
	gotAlgo    domain.Algorithm
	purged     int64
	single     *domain.Recommendation
	statistics []domain.AlgorithmStat
}

func (f *fakeService) GetUserRecommendations(_ context.Context, _ uint64, limit int, algorithm domain.Algorithm) ([]domain.Recommendation, error) {
	f.gotLimit = limit
	f.gotAlgo = algorithm
	return f.recs, f.err
}

func (f *fakeService) GetSimilarProducts(_ context.Context, _ uint64, limit int) ([]domain.Recommendation, error) {
	f.gotLimit = limit
	return f.recs, f.err
}

func (f *fakeService) GetTrendingProducts(_ context.Context, limit int) ([]domain.Recommendation, error) {
	f.gotLimit = limit
	return f.recs, f.err
}

func (f *fakeService) RecordInteraction(_ context.Context, in *domain.Interaction) error {
	f.recorded = in
	return f.err
}

func (f *fakeService) GetRealTimeUpdates(context.Context, uint64) ([]domain.Recommendation, error) {
	return f.recs, f.err
}

func (f *fakeService) FindActive(context.Context, uint64) ([]domain.Recommendation, error) {
	return f.recs, f.err
}

func (f *fakeService) PurgeExpired(context.Context, uint64) (int64, error) {
	return f.purged, f.err
}

func (f *fakeService) GetRecommendation(context.Context, uint64) (*domain.Recommendation, error) {
	return f.single, f.err
}

func (f *fakeService) AlgorithmStats(context.Context) ([]domain.AlgorithmStat, error) {
	return f.statistics, f.err
}

func newTestServer(svc RecommendationService, userID uint64, role string) *echo.Echo {
	e := echo.New()
	h := NewRecommendationHandler(svc, 0)

	withUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", userID)
			c.Set("role", role)
			return next(c)
		}
	}

	g := e.Group("/api/v1/recommendations", withUser)
	g.GET("/users/:id", h.GetUserRecommendations)
	g.GET("/users/:id/realtime", h.GetRealTimeUpdates)
	g.GET("/users/:id/active", h.GetActiveRecommendations)
	g.DELETE("/users/:id/expired", h.PurgeExpired)
	g.GET("/products/:id/similar", h.GetSimilarProducts)
	g.GET("/trending", h.GetTrendingProducts)
	g.POST("/interactions", h.RecordInteraction)
	g.GET("/stats", h.GetAlgorithmStats)
	g.GET("/:id", h.GetRecommendation)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetUserRecommendationsStatusMapping(t *testing.T) {
	batch := []domain.Recommendation{{ProductID: 3, Score: 0.78, Algorithm: domain.AlgorithmHybrid, RankPosition: 1}}

	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "ok",
			path:       "/api/v1/recommendations/users/1?limit=5",
			wantStatus: http.StatusOK,
			wantBody:   `"persisted":true`,
		},
		{
			name:       "persistence failure still serves",
			path:       "/api/v1/recommendations/users/1",
			err:        &domain.PersistenceError{Recommendations: batch, Err: errors.New("db down")},
			wantStatus: http.StatusOK,
			wantBody:   `"persisted":false`,
		},
		{
			name:       "both sources failed",
			path:       "/api/v1/recommendations/users/1",
			err:        fmt.Errorf("%w: boom", domain.ErrBothSourcesFailed),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unknown algorithm",
			path:       "/api/v1/recommendations/users/1?algorithm=RANDOM",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad user id",
			path:       "/api/v1/recommendations/users/abc",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "limit above max",
			path:       "/api/v1/recommendations/users/1?limit=1000",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			if tt.err == nil {
				svc.recs = batch
			}
			rec := do(newTestServer(svc, 1, "USER"), http.MethodGet, tt.path, "")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %s missing %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestGetUserRecommendationsPassesQuery(t *testing.T) {
	svc := &fakeService{}
	rec := do(newTestServer(svc, 1, "USER"), http.MethodGet, "/api/v1/recommendations/users/1?limit=7&algorithm=item_based", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.gotLimit != 7 || svc.gotAlgo != domain.AlgorithmItemBasedCF {
		t.Errorf("got limit=%d algorithm=%s", svc.gotLimit, svc.gotAlgo)
	}
	if !strings.Contains(rec.Body.String(), `"recommendations":[]`) {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}
}

func TestRecordInteraction(t *testing.T) {
	tests := []struct {
		name       string
		caller     uint64
		role       string
		body       string
		err        error
		wantStatus int
	}{
		{
			name:       "created",
			caller:     1,
			role:       "USER",
			body:       `{"user_id":1,"product_id":101,"interaction_type":"PURCHASE","rating":5,"context":{"page":"home"}}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "unknown type",
			caller:     1,
			role:       "USER",
			body:       `{"user_id":1,"product_id":101,"interaction_type":"CLICK"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rating out of range",
			caller:     1,
			role:       "USER",
			body:       `{"user_id":1,"product_id":101,"interaction_type":"LIKE","rating":9}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "other user",
			caller:     2,
			role:       "USER",
			body:       `{"user_id":1,"product_id":101,"interaction_type":"VIEW"}`,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin for other user",
			caller:     2,
			role:       "admin",
			body:       `{"user_id":1,"product_id":101,"interaction_type":"VIEW"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "store failure",
			caller:     1,
			role:       "USER",
			body:       `{"user_id":1,"product_id":101,"interaction_type":"VIEW"}`,
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			rec := do(newTestServer(svc, tt.caller, tt.role), http.MethodPost, "/api/v1/recommendations/interactions", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRecordInteractionMapsBody(t *testing.T) {
	svc := &fakeService{}
	body := `{"user_id":1,"product_id":101,"interaction_type":"PURCHASE","rating":4,"session_id":"s-1","context":{"page":"home"}}`
	rec := do(newTestServer(svc, 1, "USER"), http.MethodPost, "/api/v1/recommendations/interactions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}

	in := svc.recorded
	if in == nil {
		t.Fatal("interaction not passed to service")
	}
	if in.UserID != 1 || in.ProductID != 101 || in.Type != domain.InteractionPurchase {
		t.Errorf("interaction = %+v", in)
	}
	if in.Rating == nil || *in.Rating != 4 || in.SessionID != "s-1" {
		t.Errorf("rating/session = %v/%q", in.Rating, in.SessionID)
	}
	if in.Context["page"] != "home" {
		t.Errorf("context = %v", in.Context)
	}
}

func TestReadEndpoints(t *testing.T) {
	recs := []domain.Recommendation{{ID: 9, ProductID: 3, Score: 0.5}}

	tests := []struct {
		name       string
		method     string
		path       string
		svc        *fakeService
		wantStatus int
		wantBody   string
	}{
		{name: "similar", method: http.MethodGet, path: "/api/v1/recommendations/products/101/similar?limit=3", svc: &fakeService{recs: recs}, wantStatus: http.StatusOK, wantBody: `"product_id":3`},
		{name: "similar bad id", method: http.MethodGet, path: "/api/v1/recommendations/products/0/similar", svc: &fakeService{}, wantStatus: http.StatusBadRequest},
		{name: "trending", method: http.MethodGet, path: "/api/v1/recommendations/trending", svc: &fakeService{recs: recs}, wantStatus: http.StatusOK, wantBody: `"score":0.5`},
		{name: "realtime", method: http.MethodGet, path: "/api/v1/recommendations/users/1/realtime", svc: &fakeService{}, wantStatus: http.StatusOK, wantBody: `[]`},
		{name: "active", method: http.MethodGet, path: "/api/v1/recommendations/users/1/active", svc: &fakeService{recs: recs}, wantStatus: http.StatusOK, wantBody: `"id":9`},
		{name: "purge", method: http.MethodDelete, path: "/api/v1/recommendations/users/1/expired", svc: &fakeService{purged: 4}, wantStatus: http.StatusOK, wantBody: `"deleted":4`},
		{name: "stats", method: http.MethodGet, path: "/api/v1/recommendations/stats", svc: &fakeService{statistics: []domain.AlgorithmStat{{Algorithm: domain.AlgorithmHybrid, Count: 2}}}, wantStatus: http.StatusOK, wantBody: `"HYBRID"`},
		{name: "by id", method: http.MethodGet, path: "/api/v1/recommendations/9", svc: &fakeService{single: &recs[0]}, wantStatus: http.StatusOK, wantBody: `"id":9`},
		{name: "by id missing", method: http.MethodGet, path: "/api/v1/recommendations/10", svc: &fakeService{err: domain.ErrNotFound}, wantStatus: http.StatusNotFound},
		{name: "timeout", method: http.MethodGet, path: "/api/v1/recommendations/trending", svc: &fakeService{err: fmt.Errorf("context error: %w", context.DeadlineExceeded)}, wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestServer(tt.svc, 1, "ADMIN"), tt.method, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %s missing %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
