package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopguard/sentinel/pkg/domain/actor"
	"github.com/shopguard/sentinel/pkg/domain/tracking"
	"github.com/sirupsen/logrus"
)

type getIPReportHandler struct {
	logger *logrus.Logger
	repo   tracking.Repository
	actors actor.Store
}

// NewGetIPReportHandler summarizes what is known about one IP: its
// known-actor record, recent request volume and top suspicion scores.
func NewGetIPReportHandler(logger *logrus.Logger, repo tracking.Repository, actors actor.Store) Handler {
	return &getIPReportHandler{
		logger: logger,
		repo:   repo,
		actors: actors,
	}
}

func (h *getIPReportHandler) Handle(c *fiber.Ctx) error {
	ip := c.Params("ip")
	if ip == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "ip is required"})
	}
	ctx := c.UserContext()
	since := time.Now().Add(-24 * time.Hour)

	known, err := h.actors.Get(ctx, ip)
	if err != nil {
		h.logger.WithError(err).WithField("ip", ip).Error("failed to load known actor")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build report"})
	}

	count, err := h.repo.CountByIP(ctx, ip, since)
	if err != nil {
		h.logger.WithError(err).WithField("ip", ip).Error("failed to count requests")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build report"})
	}

	scores, err := h.repo.TopScoresByIP(ctx, ip, since, 10)
	if err != nil {
		h.logger.WithError(err).WithField("ip", ip).Error("failed to load scores")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build report"})
	}

	fingerprints, err := h.repo.RecentFingerprints(ctx, ip, 20)
	if err != nil {
		h.logger.WithError(err).WithField("ip", ip).Error("failed to load fingerprints")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build report"})
	}
	unique := make(map[string]struct{}, len(fingerprints))
	for _, f := range fingerprints {
		unique[f] = struct{}{}
	}

	report := fiber.Map{
		"ip":                  ip,
		"requests_24h":        count,
		"top_scores_24h":      scores,
		"unique_fingerprints": len(unique),
	}
	if known != nil {
		report["known_actor"] = known
	}
	return c.Status(fiber.StatusOK).JSON(report)
}
