package reputation_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/atmx/reputation-engine/internal/model"
	"github.com/atmx/reputation-engine/internal/reputation"
)

// newTestEnv creates a Service over a flaky in-memory store mounted on a chi router.
func newTestEnv(t *testing.T) (*reputation.Service, *flakyStore, chi.Router) {
	t.Helper()
	svc, fs := newService(t)

	r := chi.NewRouter()
	r.Route("/api/v1", reputation.NewHandler(svc).Routes)
	return svc, fs, r
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHTTP_ClosePosition(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/positions/close", closeEvent("alice", 10, 15, 4))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp reputation.CloseResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.SummaryRefreshed || resp.Warning != "" {
		t.Errorf("expected clean refresh, got %+v", resp)
	}
	if resp.Entry == nil || !resp.Entry.RealizedPnL.Equal(d(20)) {
		t.Errorf("expected realized pnl 20, got %+v", resp.Entry)
	}
}

func TestHTTP_ClosePosition_InvalidBody(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/v1/positions/close", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHTTP_ClosePosition_ValidationError(t *testing.T) {
	_, _, router := newTestEnv(t)
	ev := closeEvent("alice", 10, 15, 4)
	ev.Position.Ticker = ""

	w := do(t, router, "POST", "/api/v1/positions/close", ev)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHTTP_ClosePosition_LedgerFailure(t *testing.T) {
	_, fs, router := newTestEnv(t)
	fs.failInsert = true

	w := do(t, router, "POST", "/api/v1/positions/close", closeEvent("alice", 10, 15, 4))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestHTTP_ClosePosition_SummaryFailureStillCreated(t *testing.T) {
	_, fs, router := newTestEnv(t)
	fs.failSummary = true

	w := do(t, router, "POST", "/api/v1/positions/close", closeEvent("alice", 10, 15, 4))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp reputation.CloseResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.SummaryRefreshed || resp.Warning == "" || resp.Entry == nil {
		t.Errorf("expected recorded entry with warning, got %+v", resp)
	}
}

func TestHTTP_LeaderboardAndRank(t *testing.T) {
	svc, _, router := newTestEnv(t)
	closeWithPnL(t, svc, "a", 80)
	closeWithPnL(t, svc, "b", 50)
	closeWithPnL(t, svc, "c", 50)

	w := do(t, router, "GET", "/api/v1/leaderboard?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rows []model.LeaderboardRow
	json.Unmarshal(w.Body.Bytes(), &rows)
	if len(rows) != 2 || rows[0].Rank != 1 || rows[1].Rank != 2 {
		t.Errorf("unexpected leaderboard %+v", rows)
	}

	w = do(t, router, "GET", "/api/v1/leaderboard?limit=abc", nil)
	json.Unmarshal(w.Body.Bytes(), &rows)
	if len(rows) != 3 {
		t.Errorf("malformed limit should fall back to default, got %d rows", len(rows))
	}

	w = do(t, router, "GET", "/api/v1/users/c/rank", nil)
	var rank reputation.RankResponse
	json.Unmarshal(w.Body.Bytes(), &rank)
	if rank.Rank != 2 {
		t.Errorf("expected competition rank 2, got %d", rank.Rank)
	}

	w = do(t, router, "GET", "/api/v1/users/nobody/rank", nil)
	json.Unmarshal(w.Body.Bytes(), &rank)
	if w.Code != http.StatusOK || rank.Rank != 0 {
		t.Errorf("unknown user should be 200 with rank 0, got %d rank %d", w.Code, rank.Rank)
	}
}

func TestHTTP_EmptyLeaderboardIsArray(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/leaderboard", nil)
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}

func TestHTTP_ReputationAndProfile(t *testing.T) {
	svc, _, router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/users/zoe/reputation", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", w.Code)
	}

	w = do(t, router, "PUT", "/api/v1/users/zoe", reputation.ProfileRequest{Name: "Zoe"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from profile upsert, got %d: %s", w.Code, w.Body.String())
	}
	closeWithPnL(t, svc, "zoe", 12)

	w = do(t, router, "GET", "/api/v1/users/zoe/reputation", nil)
	var rep model.Reputation
	json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.Name != "Zoe" || rep.Rank != 1 || rep.TotalPositionsClosed != 1 {
		t.Errorf("unexpected reputation %+v", rep)
	}
}

func TestHTTP_History(t *testing.T) {
	svc, _, router := newTestEnv(t)
	closeWithPnL(t, svc, "yan", 4)
	closeWithPnL(t, svc, "yan", -4)

	w := do(t, router, "GET", "/api/v1/users/yan/history?limit=1", nil)
	var rows []model.HistoryRow
	json.Unmarshal(w.Body.Bytes(), &rows)
	if len(rows) != 1 || rows[0].IsProfitable {
		t.Errorf("expected the newest (losing) trade only, got %+v", rows)
	}

	w = do(t, router, "GET", "/api/v1/users/none/history", nil)
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}

func TestHTTP_RecomputeAndDelete(t *testing.T) {
	svc, _, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/users/xena/recompute", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for user without entries, got %d", w.Code)
	}

	e := closeWithPnL(t, svc, "xena", 7)
	w = do(t, router, "POST", "/api/v1/users/xena/recompute", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w = do(t, router, "DELETE", "/api/v1/admin/ledger/"+e.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "DELETE", "/api/v1/admin/ledger/"+e.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on repeated delete, got %d", w.Code)
	}
}
