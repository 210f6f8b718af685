package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/susu3304/expensebot/internal/assistant"
)

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := a.store.CreateGuest()
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":   true,
		"sessionId": id,
	})
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	var req assistant.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	if _, err := a.authorize(r, req.SessionID); err != nil {
		writeError(w, err)
		return
	}

	resp, err := a.assistant.Chat(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type batchRequest struct {
	SessionID string                `json:"sessionId"`
	Items     []assistant.BatchItem `json:"items"`
}

func (a *API) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := a.authorize(r, req.SessionID); err != nil {
		writeError(w, err)
		return
	}

	responses, err := a.assistant.Batch(r.Context(), req.SessionID, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"responses": responses,
	})
}

type reportRequest struct {
	SessionID string `json:"sessionId"`
	Format    string `json:"format"`
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := a.authorize(r, req.SessionID); err != nil {
		writeError(w, err)
		return
	}

	resp, err := a.assistant.Report(r.Context(), req.SessionID, req.Format)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	info := sessionFromContext(r.Context())

	stats, err := a.assistant.Stats(info.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	info := sessionFromContext(r.Context())

	expenses, err := a.assistant.Expenses(info.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": info.ID,
		"count":     len(expenses),
		"expenses":  expenses,
	})
}

func (a *API) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	info := sessionFromContext(r.Context())
	expenseID := mux.Vars(r)["expense_id"]

	var req struct {
		HasReceipt *bool `json:"hasReceipt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.HasReceipt == nil {
		writeError(w, fmt.Errorf("%w: hasReceipt is required", errBadRequest))
		return
	}

	updated, err := a.assistant.SetReceipt(r.Context(), info.ID, expenseID, *req.HasReceipt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleResetMemory(w http.ResponseWriter, r *http.Request) {
	info := sessionFromContext(r.Context())
	if err := a.assistant.ResetMemory(r.Context(), info.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (a *API) handleResetExpenses(w http.ResponseWriter, r *http.Request) {
	info := sessionFromContext(r.Context())
	if err := a.assistant.ResetExpenses(r.Context(), info.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (a *API) handleGlobalStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.Stats())
}
