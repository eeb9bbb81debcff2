package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/reviewdeck/docrelay/internal/cache"
	"github.com/reviewdeck/docrelay/internal/config"
	"github.com/reviewdeck/docrelay/internal/events"
	"github.com/reviewdeck/docrelay/internal/fetcher"
	"github.com/reviewdeck/docrelay/internal/relay"
)

// Handlers contains the HTTP handlers for the relay boundary.
type Handlers struct {
	dispatcher *relay.Dispatcher
	store      *config.Store
	cache      *cache.Cache
	metrics    *fetcher.MetricsCollector
	bus        *events.Bus
}

// NewHandlers creates a new handlers instance.
func NewHandlers(dispatcher *relay.Dispatcher, store *config.Store, documentCache *cache.Cache, metrics *fetcher.MetricsCollector, bus *events.Bus) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		store:      store,
		cache:      documentCache,
		metrics:    metrics,
		bus:        bus,
	}
}

// Health returns the service health status.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "docrelay",
		"version":   "0.1.0",
		"timestamp": time.Now().UTC(),
	})
}

// Relay accepts a typed request envelope and returns its single response.
// Transport-level failures are limited to malformed envelopes; everything
// past parsing resolves through the dispatcher.
func (h *Handlers) Relay(c *fiber.Ctx) error {
	var req relay.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(relay.Failure(fmt.Sprintf("invalid request envelope: %v", err)))
	}
	if req.Kind == "" {
		return c.Status(fiber.StatusBadRequest).JSON(relay.Failure("kind is required"))
	}

	resp := h.dispatcher.Dispatch(c.Context(), req)
	return c.JSON(resp)
}

// GetConfig returns the persisted settings, or null when unconfigured.
func (h *Handlers) GetConfig(c *fiber.Ctx) error {
	settings, _ := h.store.Get(c.Context())
	return c.JSON(fiber.Map{"settings": settings})
}

// SetConfig overwrites the persisted settings wholesale.
func (h *Handlers) SetConfig(c *fiber.Ctx) error {
	var settings config.Settings
	if err := c.BodyParser(&settings); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	if err := settings.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": err.Error(),
		})
	}

	if err := h.store.Set(c.Context(), settings); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to save settings",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "saved"})
}

// TestConnection probes the remote API with candidate credentials without
// touching the persisted settings.
func (h *Handlers) TestConnection(c *fiber.Ctx) error {
	var payload relay.TestConnectionPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(relay.Failure(err.Error()))
	}

	resp := h.dispatcher.Dispatch(c.Context(), relay.Request{
		Kind:    relay.KindTestConnection,
		Payload: c.Body(),
	})
	return c.JSON(resp)
}

// FetchDocument is a REST alias for the FetchDocument relay kind.
func (h *Handlers) FetchDocument(c *fiber.Ctx) error {
	payload, err := json.Marshal(relay.FetchDocumentPayload{
		DocumentID: c.Params("id"),
		Page:       c.QueryInt("page", 0),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(relay.Failure(err.Error()))
	}

	resp := h.dispatcher.Dispatch(c.Context(), relay.Request{
		Kind:    relay.KindFetchDocument,
		Payload: payload,
	})
	return c.JSON(resp)
}

// OpenEvent ingests a host-page "open this document" notification. The
// event is fire-and-forget: acceptance means queued, not opened.
func (h *Handlers) OpenEvent(c *fiber.Ctx) error {
	var body struct {
		DocumentID  string `json:"document_id"`
		Page        int    `json:"page"`
		DisplayName string `json:"display_name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}
	if body.DocumentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "document_id is required",
		})
	}

	event := events.NewOpenDocumentEvent(body.DocumentID, body.Page, body.DisplayName)
	if err := h.bus.Publish(event); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": event.ID,
	})
}

// ListEvent ingests a host-page "what documents are open" request. The
// event is published for observers and the current tab set is returned
// inline so the caller does not need a second round trip.
func (h *Handlers) ListEvent(c *fiber.Ctx) error {
	event := events.NewListDocumentsEvent()
	if err := h.bus.Publish(event); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp := h.dispatcher.Dispatch(c.Context(), relay.Request{
		Kind: relay.KindListDocuments,
	})
	return c.JSON(resp)
}

// Stats reports cache, fetch and event bus counters.
func (h *Handlers) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"cache":  h.cache.GetStats(),
		"fetch":  h.metrics.Summary(),
		"events": h.bus.GetStats(),
	})
}
