package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/requests"
)

type PurgeResponse struct {
	Purged int `json:"purged"`
}

// Purge drops every expired job immediately instead of waiting for the next
// sweep. Handy after bulk testing or when disk is tight.
func (d *ReframeAPIHandlersCollection) Purge() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		requestID := requests.GetRequestID(req)
		purged := d.Engine.Purge()
		log.Log(requestID, "admin purge complete", "purged", purged)
		writeJSON(w, http.StatusOK, PurgeResponse{Purged: purged})
	}
}
