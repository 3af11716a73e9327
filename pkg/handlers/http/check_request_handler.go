package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopguard/sentinel/pkg/detection"
	"github.com/shopguard/sentinel/pkg/types"
	"github.com/sirupsen/logrus"
)

type checkRequestPayload struct {
	IP            string            `json:"ip"`
	UserAgent     string            `json:"user_agent"`
	Endpoint      string            `json:"endpoint"`
	Method        string            `json:"method"`
	Referer       string            `json:"referer"`
	UserID        string            `json:"user_id"`
	Headers       map[string]string `json:"headers"`
	FormData      map[string]string `json:"form_data"`
	FormStartedAt int64             `json:"form_started_at"`
}

type checkRequestHandler struct {
	logger   *logrus.Logger
	detector *detection.Detector
}

// NewCheckRequestHandler serves sidecar mode: the storefront posts request
// metadata here and acts on the returned decision itself.
func NewCheckRequestHandler(logger *logrus.Logger, detector *detection.Detector) Handler {
	return &checkRequestHandler{
		logger:   logger,
		detector: detector,
	}
}

func (h *checkRequestHandler) Handle(c *fiber.Ctx) error {
	var payload checkRequestPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if payload.IP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ip is required"})
	}

	headers := make(map[string]string, len(payload.Headers))
	for name, value := range payload.Headers {
		headers[strings.ToLower(name)] = value
	}

	meta := types.RequestMeta{
		IP:         payload.IP,
		UserAgent:  payload.UserAgent,
		Endpoint:   payload.Endpoint,
		Method:     payload.Method,
		Referer:    payload.Referer,
		UserID:     payload.UserID,
		Headers:    headers,
		FormData:   payload.FormData,
		ReceivedAt: time.Now(),
	}
	if payload.FormStartedAt > 0 {
		meta.FormStartedAt = time.UnixMilli(payload.FormStartedAt)
	}

	outcome := h.detector.Detect(c.UserContext(), meta)

	signals := make(map[string]int, len(outcome.Signals))
	for _, r := range outcome.Signals {
		signals[r.Signal] = r.Score
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"decision": outcome.Decision,
		"signals":  signals,
		"drift": fiber.Map{
			"suspicious": outcome.Drift.Suspicious,
			"score":      outcome.Drift.Score,
			"reasons":    outcome.Drift.Reasons,
		},
	})
}
