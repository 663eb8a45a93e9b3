package api

import "net/http"

// StatsResponse is a point-in-time view of queue health.
type StatsResponse struct {
	Queue       string   `json:"queue"`
	QueueDepth  int64    `json:"queue_depth"`
	DeadLetters int64    `json:"dead_letters"`
	Flows       []string `json:"flows"`
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	queueName := a.eng.Config().Queue.Name

	depth, err := a.eng.Store().CountMessages(r.Context(), queueName)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	dead, err := a.eng.DLQService().Count(r.Context())
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Queue:       queueName,
		QueueDepth:  depth,
		DeadLetters: dead,
		Flows:       a.eng.Flows().Names(),
	})
}
