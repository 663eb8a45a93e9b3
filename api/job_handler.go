package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// EnqueueRequest asks for one out-of-schedule flow run.
type EnqueueRequest struct {
	TenantID string `json:"tenant_id"`
	FlowName string `json:"flow_name"`
}

// FlowListResponse lists registered flow names.
type FlowListResponse struct {
	Flows []string `json:"flows"`
}

func (a *API) listFlows(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FlowListResponse{Flows: a.eng.Flows().Names()})
}

func (a *API) enqueueJob(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid enqueue body: "+err.Error())
		return
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.FlowName = strings.TrimSpace(req.FlowName)
	if req.TenantID == "" || req.FlowName == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "tenant_id and flow_name are required")
		return
	}

	d, err := a.eng.EnqueueNow(r.Context(), req.TenantID, req.FlowName)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, d)
}

func (a *API) runPass(w http.ResponseWriter, r *http.Request) {
	report, err := a.eng.RunPass(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
