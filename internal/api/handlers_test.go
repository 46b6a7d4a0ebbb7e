package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/stepquest/internal/auth"
	"example.com/stepquest/internal/domain"
	"example.com/stepquest/internal/persistence/memory"
)

type stubClock struct {
	now time.Time
}

func (c stubClock) Now() time.Time { return c.now }

var handlerNow = time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

func newTestMux(store *memory.Store) *http.ServeMux {
	service := domain.NewService(store, domain.WithClock(stubClock{now: handlerNow}))
	mux := http.NewServeMux()
	NewHandler(service).RegisterRoutes(mux)
	return mux
}

func authedRequest(method, target, body string, scopes ...string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)

	scopeSet := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		scopeSet[scope] = struct{}{}
	}
	claims := &auth.Claims{
		Subject:   "user-1",
		Scopes:    scopeSet,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func seedHandlerUser(store *memory.Store) {
	store.SeedUser(domain.User{ID: "user-1", Username: "walker", CreatedAt: handlerNow.AddDate(0, -1, 0)})
}

func TestSyncStepsSuccess(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	mux := newTestMux(store)

	req := authedRequest(http.MethodPost, "/v1/steps/sync", `{"steps_count":12000}`, auth.ScopeStepsWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SyncStepsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Delta != 12000 {
		t.Fatalf("expected delta 12000 got %d", resp.Delta)
	}
	if resp.StepsToday != 12000 {
		t.Fatalf("expected steps_today 12000 got %d", resp.StepsToday)
	}
	if resp.Level != 1 {
		t.Fatalf("expected level 1 got %d", resp.Level)
	}
	if resp.Replay {
		t.Fatal("expected idempotent_replay false on first sync")
	}
}

func TestSyncStepsReplaysIdempotencyKey(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	mux := newTestMux(store)

	for i := 0; i < 2; i++ {
		req := authedRequest(http.MethodPost, "/v1/steps/sync", `{"steps_count":5000}`, auth.ScopeStepsWrite)
		req.Header.Set("Idempotency-Key", "sync-abc")
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d: %s", i, rr.Code, rr.Body.String())
		}

		var resp SyncStepsResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.StepsToday != 5000 {
			t.Fatalf("attempt %d: expected steps_today 5000 got %d", i, resp.StepsToday)
		}
		if resp.Replay != (i == 1) {
			t.Fatalf("attempt %d: unexpected idempotent_replay %v", i, resp.Replay)
		}
	}
}

func TestSyncStepsRejectsBadMode(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	mux := newTestMux(store)

	req := authedRequest(http.MethodPost, "/v1/steps/sync", `{"steps_count":100,"mode":"merge"}`, auth.ScopeStepsWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestSyncStepsRequiresScope(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	mux := newTestMux(store)

	req := authedRequest(http.MethodPost, "/v1/steps/sync", `{"steps_count":100}`, auth.ScopeStepsRead)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestSyncStepsRequiresAuth(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodPost, "/v1/steps/sync", strings.NewReader(`{"steps_count":100}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestStepHistoryRejectsBadCursor(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	mux := newTestMux(store)

	req := authedRequest(http.MethodGet, "/v1/steps/history?cursor=notadate", "", auth.ScopeStepsRead)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestWeeklyStepsReturnsSevenDays(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	mux := newTestMux(store)

	syncReq := authedRequest(http.MethodPost, "/v1/steps/sync", `{"steps_count":2000}`, auth.ScopeStepsWrite)
	syncRR := httptest.NewRecorder()
	mux.ServeHTTP(syncRR, syncReq)
	if syncRR.Code != http.StatusOK {
		t.Fatalf("sync failed: %d %s", syncRR.Code, syncRR.Body.String())
	}

	req := authedRequest(http.MethodGet, "/v1/steps/weekly", "", auth.ScopeStepsRead)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp WeeklyStepsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Days) != 7 {
		t.Fatalf("expected 7 days got %d", len(resp.Days))
	}
	if resp.TotalSteps != 2000 {
		t.Fatalf("expected total 2000 got %d", resp.TotalSteps)
	}
	if resp.Days[6].Date != "2026-03-10" {
		t.Fatalf("unexpected last day %s", resp.Days[6].Date)
	}
}

func TestStartJourneyAndConflict(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	store.SeedJourney(domain.Journey{
		ID:                 "tpl-1",
		StartCity:          "Denver",
		EndCity:            "Austin",
		TotalDistanceMiles: 877,
		IsTemplate:         true,
		IsActive:           true,
	})
	mux := newTestMux(store)

	req := authedRequest(http.MethodPost, "/v1/journeys/start", `{"template_id":"tpl-1"}`, auth.ScopeStepsWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var journey JourneyView
	if err := json.Unmarshal(rr.Body.Bytes(), &journey); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if journey.Name != "Denver to Austin" {
		t.Fatalf("unexpected journey name %q", journey.Name)
	}

	req = authedRequest(http.MethodPost, "/v1/journeys/start", `{"template_id":"tpl-1"}`, auth.ScopeStepsWrite)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rr.Code)
	}
}

func TestAttackBossEndpoint(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	store.SeedBoss(domain.Boss{
		ID:            "b1",
		Name:          "Shadow Wolf",
		MaxHealth:     200,
		CurrentHealth: 200,
		ExpReward:     500,
		BossType:      domain.BossTypeDaily,
		IsActive:      true,
	})
	mux := newTestMux(store)

	syncReq := authedRequest(http.MethodPost, "/v1/steps/sync", `{"steps_count":1000}`, auth.ScopeStepsWrite)
	syncRR := httptest.NewRecorder()
	mux.ServeHTTP(syncRR, syncReq)
	if syncRR.Code != http.StatusOK {
		t.Fatalf("sync failed: %d %s", syncRR.Code, syncRR.Body.String())
	}

	req := authedRequest(http.MethodPost, "/v1/bosses/b1/attack", `{"steps_to_use":250}`, auth.ScopeCombatWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp AttackBossResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.DamageDealt != 250 {
		t.Fatalf("expected damage 250 got %d", resp.DamageDealt)
	}
	if !resp.Defeated {
		t.Fatal("expected boss defeated")
	}
	if resp.Rewards == nil || resp.Rewards.Exp != 500 {
		t.Fatalf("unexpected rewards %+v", resp.Rewards)
	}
}

func TestAttackBossInsufficientSteps(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	store.SeedBoss(domain.Boss{
		ID:            "b1",
		MaxHealth:     200,
		CurrentHealth: 200,
		BossType:      domain.BossTypeDaily,
		IsActive:      true,
	})
	mux := newTestMux(store)

	req := authedRequest(http.MethodPost, "/v1/bosses/b1/attack", `{"steps_to_use":100}`, auth.ScopeCombatWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	store := memory.NewStore()
	store.SeedUser(domain.User{ID: "user-1", Username: "walker", TotalStepsLife: 5000})
	store.SeedUser(domain.User{ID: "user-2", Username: "runner", TotalStepsLife: 9000})
	mux := newTestMux(store)

	req := authedRequest(http.MethodGet, "/v1/leaderboard?timeframe=all", "", auth.ScopeStepsRead)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp LeaderboardResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Timeframe != "all" {
		t.Fatalf("unexpected timeframe %q", resp.Timeframe)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 entries got %d", len(resp.Items))
	}
	if resp.Items[0].UserID != "user-2" || resp.Items[0].Rank != 1 {
		t.Fatalf("unexpected first entry %+v", resp.Items[0])
	}
}

func TestLeaderboardRejectsBadTimeframe(t *testing.T) {
	store := memory.NewStore()
	seedHandlerUser(store)
	mux := newTestMux(store)

	req := authedRequest(http.MethodGet, "/v1/leaderboard?timeframe=year", "", auth.ScopeStepsRead)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestFriendRequestFlow(t *testing.T) {
	store := memory.NewStore()
	store.SeedUser(domain.User{ID: "user-1", Username: "walker"})
	store.SeedUser(domain.User{ID: "user-2", Username: "runner"})
	mux := newTestMux(store)

	req := authedRequest(http.MethodPost, "/v1/friends/requests", `{"username":"runner"}`, auth.ScopeSocialWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var created FriendRequestView
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.SenderID != "user-1" {
		t.Fatalf("unexpected sender %s", created.SenderID)
	}

	// Duplicate requests conflict.
	req = authedRequest(http.MethodPost, "/v1/friends/requests", `{"username":"runner"}`, auth.ScopeSocialWrite)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	mux := newTestMux(memory.NewStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}
