package status

import (
	"net/http"
	"strconv"
	"time"

	"github.com/verdantworks/soilnode/internal/types"
	"github.com/verdantworks/soilnode/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the diagnostics server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

func newHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

type statusResponse struct {
	UptimeSeconds    int64            `json:"uptimeSeconds"`
	Condition        string           `json:"condition"`
	NetworkConnected bool             `json:"networkConnected"`
	LinkSubscribed   bool             `json:"linkSubscribed"`
	Store            types.StoreStats `json:"store"`
}

// GetStatus reports node health and store occupancy.
func (h *Handlers) GetStatus(w http.ResponseWriter, req *http.Request) {
	c := h.controller
	h.formatter.WriteResponse(w, req, statusResponse{
		UptimeSeconds:    int64(time.Since(c.startTime).Seconds()),
		Condition:        c.condition.Current().String(),
		NetworkConnected: c.network.Connected(),
		LinkSubscribed:   c.link.Subscribed(),
		Store:            c.store.Stats(),
	}, nil)
}

// GetLatestSample returns the most recent sensor reading.
func (h *Handlers) GetLatestSample(w http.ResponseWriter, req *http.Request) {
	sample, err := h.controller.store.GetLatest()
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusNotFound, "no samples recorded yet")
		return
	}
	h.formatter.WriteResponse(w, req, sample, nil)
}

// GetRecentSamples returns the samples from the last N hours (default 1).
func (h *Handlers) GetRecentSamples(w http.ResponseWriter, req *http.Request) {
	hours := 1
	if v := req.URL.Query().Get("hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "hours must be an integer")
			return
		}
		hours = parsed
	}
	h.formatter.WriteResponse(w, req, h.controller.store.GetRecent(hours), nil)
}

// GetHistory returns daily aggregates for the last N days (default 7).
func (h *Handlers) GetHistory(w http.ResponseWriter, req *http.Request) {
	days := 7
	if v := req.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = parsed
	}
	h.formatter.WriteResponse(w, req, h.controller.store.RecentAggregates(days), nil)
}

// GetCondition returns the current plant classification.
func (h *Handlers) GetCondition(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, map[string]string{
		"condition": h.controller.condition.Current().String(),
	}, nil)
}

// GetProfile returns the active plant profile.
func (h *Handlers) GetProfile(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, h.controller.profiles.Profile(), nil)
}
