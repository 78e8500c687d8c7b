package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrymomot/fintrack/pkg/access"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/svc/client"
)

// accessView is a decision plus the connectivity block that the client
// renders on top of it.
type accessView struct {
	access.Decision
	Offline bool `json:"offline"`
}

func view(rt *client.Runtime, d access.Decision) accessView {
	return accessView{Decision: d, Offline: rt.Connectivity.Blocks(d.Route)}
}

func routeParams(r *http.Request) (string, access.Variant) {
	route := r.URL.Query().Get("route")
	if route == "" {
		route = access.LandingRoute
	}
	return route, access.ParseVariant(r.URL.Query().Get("variant"))
}

func (s *Server) evaluateAccess(w http.ResponseWriter, r *http.Request) {
	rt := runtimeFrom(r.Context())
	route, v := routeParams(r)
	writeJSON(w, http.StatusOK, view(rt, rt.Guard.Evaluate(route, v)))
}

// watchAccess streams a decision event on every session, subscription or
// connectivity change and on the guard's poll interval.
func (s *Server) watchAccess(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.WarnContext(r.Context(), "streaming not supported", logger.Error(err))
		return
	}
	_ = rc.SetWriteDeadline(time.Time{})

	ctx := r.Context()
	rt := runtimeFrom(ctx)
	route, v := routeParams(r)

	var last string
	err := rt.Guard.Watch(ctx, route, v, rt.Changes(ctx), func(d access.Decision) {
		raw, err := json.Marshal(view(rt, d))
		if err != nil || string(raw) == last {
			return
		}
		last = string(raw)
		if _, err := fmt.Fprintf(w, "event: decision\ndata: %s\n\n", raw); err != nil {
			return
		}
		_ = rc.Flush()
	})
	if err != nil && !errors.Is(err, ctx.Err()) {
		s.logger.WarnContext(ctx, "access watch ended", logger.Route(route), logger.Error(err))
	}
}
