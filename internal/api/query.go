package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bauquery/bauquery/internal/nlq"
	"github.com/bauquery/bauquery/internal/observability"
)

// defaultSessionID serves callers that never pass a session. They all
// share one conversation, matching a single-user reporting UI.
const defaultSessionID = "default"

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Success           bool             `json:"success"`
	NaturalResponse   string           `json:"natural_response,omitempty"`
	SQLQuery          string           `json:"sql_query,omitempty"`
	AdditionalContext string           `json:"additional_context,omitempty"`
	Results           []map[string]any `json:"results,omitempty"`
	RowCount          int              `json:"row_count"`
	Truncated         bool             `json:"truncated,omitempty"`
	Error             string           `json:"error,omitempty"`
	ErrorCode         string           `json:"error_code,omitempty"`
	TraceID           string           `json:"trace_id,omitempty"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query pipeline is not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}

	sessionID := strings.TrimSpace(request.SessionID)
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	outcome, err := deps.Pipeline.Run(r.Context(), sessionID, request.Query)
	if err != nil {
		kind := nlq.KindOf(err)
		writeJSON(w, statusForKind(kind), queryResponse{
			Success:   false,
			SQLQuery:  outcome.SQLQuery,
			Error:     nlq.MessageOf(err),
			ErrorCode: string(kind),
			TraceID:   observability.TraceIDFromContext(r.Context()),
		})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Success:           true,
		NaturalResponse:   outcome.NaturalResponse,
		SQLQuery:          outcome.SQLQuery,
		AdditionalContext: outcome.AdditionalContext,
		Results:           outcome.Results,
		RowCount:          outcome.RowCount,
		Truncated:         outcome.Truncated,
		TraceID:           observability.TraceIDFromContext(r.Context()),
	})
}

func statusForKind(kind nlq.ErrorKind) int {
	switch kind {
	case nlq.KindInvalidInput, nlq.KindUnsafeQuery, nlq.KindUnknownSchemaReference:
		return http.StatusBadRequest
	case nlq.KindTransportError, nlq.KindMalformedModelResponse:
		return http.StatusBadGateway
	case nlq.KindQueryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type sessionResetRequest struct {
	SessionID string `json:"session_id"`
}

func handleSessionReset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session store is not configured", false, nil)
		return
	}

	var request sessionResetRequest
	if r.Body != nil && r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&request); err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid reset request body", false, map[string]any{"details": err.Error()})
			return
		}
	}
	sessionID := strings.TrimSpace(request.SessionID)
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	deps.Sessions.Reset(sessionID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset", "session_id": sessionID})
}
