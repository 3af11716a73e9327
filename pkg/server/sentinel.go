package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/shopguard/sentinel/pkg/config"
	handlers "github.com/shopguard/sentinel/pkg/handlers/http"
	"github.com/shopguard/sentinel/pkg/middleware"
	"github.com/sirupsen/logrus"
)

type (
	SentinelServerDI struct {
		MiddlewareTransport middleware.Transport
		HandlerTransport    handlers.HandlerTransport
		Config              *config.Config
		Logger              *logrus.Logger
	}
	// SentinelServer exposes the detection API and the operator endpoints on
	// one port, with prometheus on the metrics port.
	SentinelServer struct {
		*BaseServer
		middlewareTransport middleware.Transport
		handlerTransport    handlers.HandlerTransport
	}
)

func NewSentinelServer(di SentinelServerDI) *SentinelServer {
	return &SentinelServer{
		BaseServer:          NewBaseServer(di.Config, di.Logger),
		middlewareTransport: di.MiddlewareTransport,
		handlerTransport:    di.HandlerTransport,
	}
}

func (s *SentinelServer) Run() error {
	s.setupRoutes()
	s.setupHealthCheck()
	s.setupMetricsEndpoint()

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	s.Logger.WithField("addr", addr).Info("starting sentinel server")
	return s.Router.Listen(addr)
}

func (s *SentinelServer) setupRoutes() {
	v1 := s.Router.Group("/api/v1")
	{
		v1.Get("/healthz", s.handlerTransport.HealthHandler.Handle)
		v1.Post("/check", s.handlerTransport.CheckRequestHandler.Handle)

		admin := v1.Group("/admin", s.middlewareTransport.AdminAuthMiddleware.Middleware())
		{
			admin.Post("/blocks", s.handlerTransport.BlockIPHandler.Handle)
			admin.Delete("/blocks/:ip", s.handlerTransport.UnblockIPHandler.Handle)
			admin.Get("/ips/:ip", s.handlerTransport.GetIPReportHandler.Handle)
			admin.Get("/stats", s.handlerTransport.GetStatsHandler.Handle)
		}
	}

	// Everything else is storefront traffic gated by the detection pipeline.
	shop := s.Router.Group("/", s.middlewareTransport.DetectionMiddleware.Middleware())
	shop.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}

func (s *SentinelServer) Shutdown() error {
	return s.Router.Shutdown()
}
