package thresholds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/breaker"
	"vitalpaw-monitor/internal/models"
)

// ErrBreedNotFound is returned when the registry has no entry for a breed.
var ErrBreedNotFound = errors.New("breed not found")

// thresholdsResponse is the registry's JSON body.
type thresholdsResponse struct {
	Breed          string   `json:"breed"`
	MinHeartRate   *int     `json:"minHeartRate"`
	MaxHeartRate   *int     `json:"maxHeartRate"`
	MinTemperature *float64 `json:"minTemperature"`
	MaxTemperature *float64 `json:"maxTemperature"`
}

// HTTPBreedRegistry calls the breed registry's REST API.
type HTTPBreedRegistry struct {
	httpClient *resty.Client
	breaker    *breaker.Breaker
	logger     *zap.Logger
}

// NewHTTPBreedRegistry creates a registry client. br may be nil.
func NewHTTPBreedRegistry(baseURL string, timeout time.Duration, br *breaker.Breaker, logger *zap.Logger) *HTTPBreedRegistry {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")

	return &HTTPBreedRegistry{
		httpClient: client,
		breaker:    br,
		logger:     logger,
	}
}

// GetThresholds fetches the thresholds for breed.
func (c *HTTPBreedRegistry) GetThresholds(ctx context.Context, breed string) (models.Thresholds, error) {
	var (
		result   models.Thresholds
		notFound bool
	)
	call := func(ctx context.Context) error {
		t, err := c.fetch(ctx, breed)
		if errors.Is(err, ErrBreedNotFound) {
			// a missing breed says nothing about registry health
			notFound = true
			return nil
		}
		result = t
		return err
	}

	var err error
	if c.breaker == nil {
		err = call(ctx)
	} else {
		err = c.breaker.Execute(ctx, call)
	}
	if err != nil {
		return models.Thresholds{}, err
	}
	if notFound {
		return models.Thresholds{}, fmt.Errorf("%w: %s", ErrBreedNotFound, breed)
	}
	return result, nil
}

func (c *HTTPBreedRegistry) fetch(ctx context.Context, breed string) (models.Thresholds, error) {
	var body thresholdsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("breed", breed).
		SetResult(&body).
		Get("/api/thresholds")
	if err != nil {
		return models.Thresholds{}, fmt.Errorf("failed to call breed registry: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return models.Thresholds{}, ErrBreedNotFound
	case resp.IsError():
		c.logger.Debug("Breed registry returned error",
			zap.String("breed", breed),
			zap.Int("status_code", resp.StatusCode()))
		return models.Thresholds{}, fmt.Errorf("breed registry returned status %d", resp.StatusCode())
	}

	if body.MinHeartRate == nil || body.MaxHeartRate == nil || body.MinTemperature == nil || body.MaxTemperature == nil {
		return models.Thresholds{}, fmt.Errorf("breed registry response for %q is incomplete", breed)
	}

	t := models.Thresholds{
		Breed:          breed,
		MinHeartRate:   *body.MinHeartRate,
		MaxHeartRate:   *body.MaxHeartRate,
		MinTemperature: *body.MinTemperature,
		MaxTemperature: *body.MaxTemperature,
	}
	if body.Breed != "" {
		t.Breed = body.Breed
	}
	if err := t.Validate(); err != nil {
		return models.Thresholds{}, fmt.Errorf("breed registry response for %q: %w", breed, err)
	}
	return t, nil
}
