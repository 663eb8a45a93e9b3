package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
)

// PurgeResponse reports how many entries a purge removed.
type PurgeResponse struct {
	Purged int64 `json:"purged"`
}

func (a *API) listDLQ(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	entries, err := a.eng.DLQService().List(r.Context(), dlq.ListOpts{
		Limit:    limit,
		Offset:   offset,
		TenantID: r.URL.Query().Get("tenant_id"),
	})
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*dlq.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) getDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDLQID(chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid DLQ entry ID: "+err.Error())
		return
	}

	entry, err := a.eng.DLQService().Get(r.Context(), entryID)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) replayDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseDLQID(chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid DLQ entry ID: "+err.Error())
		return
	}

	d, err := a.eng.DLQService().Replay(r.Context(), entryID)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// purgeDLQ removes entries that failed before the "before" query parameter
// (RFC 3339). Without it every entry is removed.
func (a *API) purgeDLQ(w http.ResponseWriter, r *http.Request) {
	before := time.Now().UTC()
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "before must be RFC 3339")
			return
		}
		before = t
	}

	n, err := a.eng.DLQService().Purge(r.Context(), before)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{Purged: n})
}
