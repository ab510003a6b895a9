package reputation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atmx/reputation-engine/internal/ledger"
	"github.com/atmx/reputation-engine/internal/model"
	"github.com/atmx/reputation-engine/internal/store"
)

// Handler exposes the Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates HTTP handlers backed by svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/positions/close", h.ClosePosition)
	r.Get("/leaderboard", h.GetLeaderboard)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Put("/", h.PutProfile)
		r.Get("/history", h.GetHistory)
		r.Get("/reputation", h.GetReputation)
		r.Get("/rank", h.GetRank)
		r.Post("/recompute", h.Recompute)
	})

	r.Delete("/admin/ledger/{entryID}", h.DeleteEntry)
}

// --- Request/Response types ---

// CloseResponse is returned from POST /positions/close.
type CloseResponse struct {
	Entry            *model.LedgerEntry `json:"entry"`
	SummaryRefreshed bool               `json:"summary_refreshed"`
	Warning          string             `json:"warning,omitempty"`
}

// ProfileRequest is the JSON body for PUT /users/{userID}.
type ProfileRequest struct {
	Name string `json:"name"`
}

// RankResponse is returned from GET /users/{userID}/rank.
type RankResponse struct {
	UserID string `json:"user_id"`
	Rank   int    `json:"rank"`
}

// --- HTTP Handlers ---

// ClosePosition handles POST /api/v1/positions/close
func (h *Handler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	var ev model.CloseEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.svc.ClosePosition(r.Context(), ev)

	var verr *ledger.ValidationError
	var rerr *SummaryRefreshError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, CloseResponse{Entry: entry, SummaryRefreshed: true})
	case errors.As(err, &verr):
		writeError(w, verr.Error(), http.StatusBadRequest)
	case errors.As(err, &rerr):
		writeJSON(w, http.StatusCreated, CloseResponse{
			Entry:   entry,
			Warning: "trade recorded; performance summary refresh failed, the next close or recompute repairs it",
		})
	default:
		writeError(w, "failed to record trade", http.StatusInternalServerError)
	}
}

// GetLeaderboard handles GET /api/v1/leaderboard?limit=N
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Leaderboard(r.Context(), queryInt(r, "limit"))
	if err != nil {
		slog.Error("leaderboard query failed", "err", err)
		writeError(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []model.LeaderboardRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetHistory handles GET /api/v1/users/{userID}/history?limit=N
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	rows, err := h.svc.TradingHistory(r.Context(), userID, queryInt(r, "limit"))
	if err != nil {
		slog.Error("history query failed", "user", userID, "err", err)
		writeError(w, "failed to load trading history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetReputation handles GET /api/v1/users/{userID}/reputation
func (h *Handler) GetReputation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	rep, err := h.svc.ReputationSummary(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("reputation query failed", "user", userID, "err", err)
		writeError(w, "failed to load reputation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetRank handles GET /api/v1/users/{userID}/rank
// Unknown users are reported as rank 0, not 404.
func (h *Handler) GetRank(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	rank, err := h.svc.UserRank(r.Context(), userID)
	if err != nil {
		slog.Error("rank query failed", "user", userID, "err", err)
		writeError(w, "failed to load rank", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, RankResponse{UserID: userID, Rank: rank})
}

// Recompute handles POST /api/v1/users/{userID}/recompute
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	summary, err := h.svc.RecomputeSummary(r.Context(), userID)
	if err != nil {
		slog.Error("recompute failed", "user", userID, "err", err)
		writeError(w, "failed to recompute summary", http.StatusInternalServerError)
		return
	}
	if summary == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// PutProfile handles PUT /api/v1/users/{userID}
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.svc.UpsertProfile(r.Context(), chi.URLParam(r, "userID"), req.Name)
	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		writeError(w, verr.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("profile upsert failed", "err", err)
		writeError(w, "failed to save profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteEntry handles DELETE /api/v1/admin/ledger/{entryID}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")

	err := h.svc.DeleteEntry(r.Context(), entryID)

	var rerr *SummaryRefreshError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, "ledger entry not found", http.StatusNotFound)
	case errors.As(err, &rerr):
		writeJSON(w, http.StatusAccepted, map[string]string{
			"user_id": rerr.UserID,
			"warning": "entry deleted; performance summary refresh failed, recompute the user to repair",
		})
	default:
		slog.Error("ledger delete failed", "entry_id", entryID, "err", err)
		writeError(w, "failed to delete ledger entry", http.StatusInternalServerError)
	}
}

// queryInt parses an integer query parameter; missing or malformed values are 0.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
