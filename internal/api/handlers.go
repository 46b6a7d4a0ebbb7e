// Package api exposes HTTP handlers for the stepquest service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/stepquest/internal/auth"
	"example.com/stepquest/internal/domain"
	"example.com/stepquest/internal/observability"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/steps/sync", h.syncSteps)
	mux.HandleFunc("/v1/steps/history", h.stepHistory)
	mux.HandleFunc("/v1/steps/weekly", h.weeklySteps)
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/v1/journeys", h.journeyTemplates)
	mux.HandleFunc("/v1/journeys/start", h.startJourney)
	mux.HandleFunc("/v1/journeys/abandon", h.abandonJourney)
	mux.HandleFunc("/v1/bosses", h.listBosses)
	mux.HandleFunc("/v1/bosses/", h.bossByID)
	mux.HandleFunc("/v1/leaderboard", h.leaderboard)
	mux.HandleFunc("/v1/friends", h.friends)
	mux.HandleFunc("/v1/friends/", h.friendByID)
	mux.HandleFunc("/v1/friends/requests", h.friendRequests)
	mux.HandleFunc("/v1/friends/requests/", h.friendRequestByID)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) syncSteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeStepsWrite)
	if !ok {
		return
	}

	var req SyncStepsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	mode, err := domain.ParseSyncMode(req.Mode)
	if err != nil {
		observability.RecordSync("rejected")
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := h.service.SyncSteps(r.Context(), domain.SyncStepsInput{
		UserID:         claims.Subject,
		Count:          req.StepsCount,
		Mode:           mode,
		Source:         req.Source,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		observability.RecordSync("rejected")
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Replay {
		observability.RecordSync("replayed")
	} else {
		observability.RecordSync("applied")
	}
	writeJSON(w, status, SyncStepsResponse{SyncResult: *result, Replay: result.Replay})
}

func (h *Handler) stepHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	var cursorDate time.Time
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
			return
		}
		cursorDate = parsed
	}

	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.service.StepHistory(r.Context(), claims.Subject, cursorDate, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]StepLogView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toStepLogView(entry))
	}

	resp := StepHistoryResponse{Items: items}
	if len(items) == limit {
		resp.NextCursor = items[len(items)-1].Date
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) weeklySteps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	series, err := h.service.WeeklySteps(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	days := make([]WeeklyDayView, 0, len(series))
	total := 0
	for _, day := range series {
		days = append(days, WeeklyDayView{
			Date:  day.Date.Format("2006-01-02"),
			Steps: day.Steps,
			Miles: domain.Miles(day.Steps),
		})
		total += day.Steps
	}
	writeJSON(w, http.StatusOK, WeeklyStepsResponse{Days: days, TotalSteps: total})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) journeyTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.ScopeStepsRead); !ok {
		return
	}

	templates, err := h.service.ListJourneyTemplates(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]JourneyView, 0, len(templates))
	for _, journey := range templates {
		items = append(items, toJourneyView(journey))
	}
	writeJSON(w, http.StatusOK, JourneyListResponse{Items: items})
}

func (h *Handler) startJourney(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeStepsWrite)
	if !ok {
		return
	}

	var req StartJourneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "template_id is required")
		return
	}

	journey, err := h.service.StartJourney(r.Context(), claims.Subject, req.TemplateID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJourneyView(*journey))
}

func (h *Handler) abandonJourney(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeStepsWrite)
	if !ok {
		return
	}

	if err := h.service.AbandonJourney(r.Context(), claims.Subject); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listBosses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	bosses, err := h.service.ListBosses(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]BossView, 0, len(bosses))
	for _, boss := range bosses {
		items = append(items, toBossView(boss))
	}
	writeJSON(w, http.StatusOK, BossListResponse{Items: items})
}

func (h *Handler) bossByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/bosses/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing boss id")
		return
	}

	switch {
	case action == "attack" && r.Method == http.MethodPost:
		h.attackBoss(w, r, id)
	case action == "attacks" && r.Method == http.MethodGet:
		h.bossAttacks(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) attackBoss(w http.ResponseWriter, r *http.Request, bossID string) {
	claims, ok := requireScope(w, r, auth.ScopeCombatWrite)
	if !ok {
		return
	}

	var req AttackBossRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	result, err := h.service.AttackBoss(r.Context(), claims.Subject, bossID, req.StepsToUse)
	if err != nil {
		observability.RecordAttack("rejected")
		writeServiceError(w, err)
		return
	}

	if result.Defeated {
		observability.RecordAttack("defeat")
	} else {
		observability.RecordAttack("hit")
	}

	resp := AttackBossResponse{
		DamageDealt: result.DamageDealt,
		ExpGained:   result.ExpGained,
		Defeated:    result.Defeated,
		LevelUps:    result.LevelUps,
		Level:       result.Level.CurrentLevel,
		Boss:        toBossView(result.Boss),
		Rewards:     result.Rewards,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) bossAttacks(w http.ResponseWriter, r *http.Request, bossID string) {
	if _, ok := requireScope(w, r, auth.ScopeStepsRead); !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.service.BossAttackHistory(r.Context(), bossID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]AttackRecordView, 0, len(records))
	for _, record := range records {
		items = append(items, AttackRecordView{
			ID:          record.ID,
			UserID:      record.UserID,
			StepsUsed:   record.StepsUsed,
			DamageDealt: record.DamageDealt,
			ExpGained:   record.ExpGained,
			AttackedAt:  record.AttackedAt,
		})
	}
	writeJSON(w, http.StatusOK, AttackHistoryResponse{Items: items})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	timeframe, err := domain.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	entries, err := h.service.Leaderboard(r.Context(), domain.LeaderboardInput{
		RequesterID: claims.Subject,
		Timeframe:   timeframe,
		FriendsOnly: r.URL.Query().Get("friends") == "true",
		Limit:       limit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]LeaderboardEntryView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, LeaderboardEntryView{
			Rank:        entry.Rank,
			UserID:      entry.UserID,
			Username:    entry.Username,
			DisplayName: entry.DisplayName,
			AvatarURL:   entry.AvatarURL,
			Level:       entry.Level,
			Steps:       entry.Steps,
			Miles:       entry.Miles,
		})
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{Timeframe: string(timeframe), Items: items})
}

func (h *Handler) friends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeStepsRead)
	if !ok {
		return
	}

	friends, err := h.service.ListFriends(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]FriendView, 0, len(friends))
	for _, friend := range friends {
		items = append(items, FriendView{
			UserID:      friend.ID,
			Username:    friend.Username,
			DisplayName: friend.Name(),
			AvatarURL:   friend.AvatarURL,
		})
	}
	writeJSON(w, http.StatusOK, FriendListResponse{Items: items})
}

func (h *Handler) friendByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/friends/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing friend id")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeSocialWrite)
	if !ok {
		return
	}

	if err := h.service.RemoveFriend(r.Context(), claims.Subject, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) friendRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		claims, ok := requireScope(w, r, auth.ScopeStepsRead)
		if !ok {
			return
		}
		requests, err := h.service.PendingFriendRequests(r.Context(), claims.Subject)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		items := make([]FriendRequestView, 0, len(requests))
		for _, request := range requests {
			items = append(items, FriendRequestView{
				ID:       request.ID,
				SenderID: request.SenderID,
				SentAt:   request.SentAt,
			})
		}
		writeJSON(w, http.StatusOK, FriendRequestListResponse{Items: items})

	case http.MethodPost:
		claims, ok := requireScope(w, r, auth.ScopeSocialWrite)
		if !ok {
			return
		}
		var req SendFriendRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		if strings.TrimSpace(req.Username) == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "username is required")
			return
		}
		friendship, err := h.service.SendFriendRequest(r.Context(), claims.Subject, req.Username)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, FriendRequestView{
			ID:       friendship.ID,
			SenderID: friendship.SenderID,
			SentAt:   friendship.SentAt,
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) friendRequestByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/friends/requests/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || action != "respond" || r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeSocialWrite)
	if !ok {
		return
	}

	var req RespondFriendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := h.service.RespondFriendRequest(r.Context(), claims.Subject, id, req.Accept); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusConflict, "unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
