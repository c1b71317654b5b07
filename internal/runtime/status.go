package runtime

import (
	"context"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// Status is the body of the status API.
type Status struct {
	Environment string              `json:"environment"`
	Maintenance bool                `json:"maintenance"`
	EventBus    string              `json:"eventBus"`
	Guards      []string            `json:"guards"`
	Handlers    map[string][]string `json:"handlers"`
}

// Status snapshots the runtime for the status API.
func (r *Runtime) Status(ctx context.Context) (Status, error) {
	on, err := r.IsInMaintenance(ctx)
	if err != nil {
		return Status{}, err
	}
	handlers := make(map[string][]string)
	for _, eventType := range r.dispatcher.EventTypes() {
		handlers[eventType] = r.dispatcher.Handlers(eventType)
	}
	return Status{
		Environment: r.Conf.Environment,
		Maintenance: on,
		EventBus:    r.Conf.EventBus,
		Guards:      r.dispatcher.Chain().Names(),
		Handlers:    handlers,
	}, nil
}

func (r *Runtime) handleGetStatus(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if origin := r.allowedCORSOrigin(req.Header.Get("Origin")); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	status, err := r.Status(req.Context())
	if err != nil {
		r.Log.Error("Failed to read status", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := sonic.ConfigStd.NewEncoder(w).Encode(status); err != nil {
		r.Log.Error("Failed to encode status", err, nil)
	}
}

func (r *Runtime) allowedCORSOrigin(requestOrigin string) string {
	for _, allowed := range r.Conf.StatusAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if requestOrigin != "" && strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
