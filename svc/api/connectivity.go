package api

import (
	"net/http"

	"github.com/dmitrymomot/fintrack/svc/client"
)

type connectivityResponse struct {
	Online   bool   `json:"online"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

func connectivityView(rt *client.Runtime) connectivityResponse {
	resp := connectivityResponse{Online: rt.Connectivity.Online(), Attempts: rt.Connectivity.Attempts()}
	if err := rt.Connectivity.Err(); err != nil {
		resp.Error = firstLine(err)
	}
	return resp
}

func (s *Server) connectivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, connectivityView(runtimeFrom(r.Context())))
}

// networkChanged records the browser's online/offline event and rechecks.
func (s *Server) networkChanged(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online bool `json:"online"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	rt := runtimeFrom(r.Context())
	rt.Network.Set(req.Online)
	rt.Connectivity.NetworkChanged(r.Context())
	writeJSON(w, http.StatusOK, connectivityView(rt))
}

func (s *Server) retryConnectivity(w http.ResponseWriter, r *http.Request) {
	rt := runtimeFrom(r.Context())
	rt.Connectivity.Retry(r.Context())
	writeJSON(w, http.StatusOK, connectivityView(rt))
}
