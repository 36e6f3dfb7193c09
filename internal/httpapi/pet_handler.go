package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"vitalpaw-monitor/internal/cache"
	"vitalpaw-monitor/internal/models"
)

// RealtimeReader returns the latest live update of a pet.
type RealtimeReader interface {
	GetRealtime(ctx context.Context, petID string) (*models.LiveUpdate, error)
}

// AlertLister lists recent alerts of a pet, newest first.
type AlertLister interface {
	ListRecentByPet(ctx context.Context, petID string, limit int) ([]models.Alert, error)
}

// LiveHub attaches a websocket viewer to a pet.
type LiveHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, petID string, initial *models.LiveUpdate)
}

const defaultAlertLimit = 50

type PetHandler struct {
	realtime RealtimeReader
	alerts   AlertLister
	hub      LiveHub
	logger   *zap.Logger
}

func NewPetHandler(realtime RealtimeReader, alerts AlertLister, hub LiveHub, logger *zap.Logger) *PetHandler {
	return &PetHandler{
		realtime: realtime,
		alerts:   alerts,
		hub:      hub,
		logger:   logger,
	}
}

// Live streams updates for petID, starting with the cached snapshot if any.
func (h *PetHandler) Live(w http.ResponseWriter, r *http.Request, petID string) {
	snapshot, err := h.realtime.GetRealtime(r.Context(), petID)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		h.logger.Warn("Failed to load realtime snapshot for live viewer",
			zap.String("pet_id", petID),
			zap.Error(err))
	}
	h.hub.ServeWS(w, r, petID, snapshot)
}

func (h *PetHandler) Realtime(w http.ResponseWriter, r *http.Request, petID string) {
	snapshot, err := h.realtime.GetRealtime(r.Context(), petID)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			writeJSON(w, http.StatusNotFound, Fail("no realtime data for pet"))
			return
		}
		h.logger.Error("Failed to read realtime snapshot", zap.String("pet_id", petID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to read realtime data"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(snapshot))
}

func (h *PetHandler) Alerts(w http.ResponseWriter, r *http.Request, petID string) {
	limit := parseInt(r.URL.Query().Get("limit"), defaultAlertLimit)
	alerts, err := h.alerts.ListRecentByPet(r.Context(), petID, limit)
	if err != nil {
		h.logger.Error("Failed to list alerts", zap.String("pet_id", petID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list alerts"))
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, Ok(alerts))
}
