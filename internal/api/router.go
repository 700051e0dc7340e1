package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/stalink/internal/accounts/network"
	"github.com/nerrad567/stalink/internal/mediator"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/network", s.handleNetwork)
		r.Get("/accounts", s.handleAccounts)
		r.Get(s.wsPath(), s.handleWebSocket)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "read-only API")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return "/" + strings.TrimPrefix(s.wsCfg.Path, "/")
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// NetworkView is the JSON form of a network state.
type NetworkView struct {
	State   string `json:"state"`
	IP      string `json:"ip,omitempty"`
	Gateway string `json:"gateway,omitempty"`
	Netmask string `json:"netmask,omitempty"`
}

func networkView(state network.NetworkState) NetworkView {
	v := NetworkView{State: state.State.String()}
	if state.State == network.Connected {
		v.IP = state.IPv4.Addr().String()
		v.Gateway = state.IPv4.GatewayAddr().String()
		v.Netmask = state.IPv4.Mask().String()
	}
	return v
}

// handleNetwork pulls the current state from the network account.
func (s *Server) handleNetwork(w http.ResponseWriter, _ *http.Request) {
	req := &network.Request{Type: network.TypeNetwork}
	err := s.acct.Pull(network.Name, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, networkView(req.Network))
	case errors.Is(err, network.ErrNotReady), errors.Is(err, mediator.ErrNotFound):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		s.logger.Error("network pull failed", "status", mediator.StatusOf(err).String(), "error", err)
		writeInternalError(w, "network state unavailable")
	}
}

// AccountView is the JSON form of a mediator account.
type AccountView struct {
	Name          string         `json:"name"`
	Subscriptions []string       `json:"subscriptions"`
	Subscribers   []string       `json:"subscribers"`
	Timer         TimerView      `json:"timer"`
	Stats         mediator.Stats `json:"stats"`
}

// TimerView describes an account timer.
type TimerView struct {
	Enabled bool   `json:"enabled"`
	Period  string `json:"period,omitempty"`
}

// handleAccounts lists the registered accounts in registration order.
func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	accounts := s.m.Accounts()
	views := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		v := AccountView{
			Name:          a.Name(),
			Subscriptions: nonNil(a.Subscriptions()),
			Subscribers:   nonNil(a.Subscribers()),
			Timer:         TimerView{Enabled: a.TimerEnabled()},
			Stats:         a.Stats(),
		}
		if p := a.TimerPeriod(); p > 0 {
			v.Timer.Period = p.String()
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": views,
		"count":    len(views),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
