package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/shopguard/sentinel/pkg/config"
	"github.com/shopguard/sentinel/pkg/domain/telemetry"
	"github.com/shopguard/sentinel/pkg/infra/telemetry/kafka"
	"github.com/sirupsen/logrus"
)

// registered holds the exporter prototypes that settings can instantiate.
var registered = []telemetry.Exporter{
	kafka.NewKafkaExporter(),
}

// Emitter fans detection events out to the configured exporters off the
// request path. A full buffer drops events rather than stalling detection.
type Emitter struct {
	exporters []telemetry.Exporter
	logger    logrus.FieldLogger
	events    chan *telemetry.Event
	done      chan struct{}
}

const emitterBuffer = 1024

func NewEmitter(cfg config.TelemetryConfig, logger logrus.FieldLogger) (*Emitter, error) {
	var exporters []telemetry.Exporter
	for _, ec := range cfg.Exporters {
		prototype, err := locate(ec.Name)
		if err != nil {
			return nil, err
		}
		if err := prototype.ValidateConfig(ec.Settings); err != nil {
			return nil, fmt.Errorf("exporter %s: %w", ec.Name, err)
		}
		exporter, err := prototype.WithSettings(ec.Settings)
		if err != nil {
			return nil, fmt.Errorf("exporter %s: %w", ec.Name, err)
		}
		exporters = append(exporters, exporter)
	}

	e := &Emitter{
		exporters: exporters,
		logger:    logger,
		events:    make(chan *telemetry.Event, emitterBuffer),
		done:      make(chan struct{}),
	}
	go e.run()
	return e, nil
}

func locate(name string) (telemetry.Exporter, error) {
	for _, exporter := range registered {
		if exporter.Name() == name {
			return exporter, nil
		}
	}
	return nil, fmt.Errorf("unknown exporter: %s", name)
}

// Emit queues an event without blocking the caller.
func (e *Emitter) Emit(evt *telemetry.Event) {
	select {
	case e.events <- evt:
	default:
		e.logger.Warn("telemetry buffer full, dropping event")
	}
}

func (e *Emitter) run() {
	defer close(e.done)
	for evt := range e.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		for _, exporter := range e.exporters {
			if err := exporter.Handle(ctx, evt); err != nil {
				e.logger.WithError(err).WithField("exporter", exporter.Name()).Warn("telemetry export failed")
			}
		}
		cancel()
	}
}

// Close drains queued events and shuts the exporters down.
func (e *Emitter) Close() {
	close(e.events)
	<-e.done
	for _, exporter := range e.exporters {
		exporter.Close()
	}
}
