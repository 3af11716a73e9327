package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(ctx *fiber.Ctx) error
}

type HandlerTransport struct {
	// Detection
	CheckRequestHandler Handler
	GetIPReportHandler  Handler

	// Admin
	BlockIPHandler   Handler
	UnblockIPHandler Handler
	GetStatsHandler  Handler

	// Ops
	HealthHandler Handler
}
