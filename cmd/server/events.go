// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/castline/internal/config"
	"github.com/tomtom215/castline/internal/eventprocessor"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/supervisor"
	"github.com/tomtom215/castline/internal/supervisor/services"
)

// eventComponents are the application event stream parts owned by main.
type eventComponents struct {
	server     *eventprocessor.EmbeddedServer
	publisher  *eventprocessor.EventPublisher
	subscriber *eventprocessor.Subscriber
	consumer   *eventprocessor.Consumer
}

// initEvents connects the notification event stream when NATS_ENABLED=true.
// It returns nil components when the stream is disabled in configuration or
// the binary was built without the nats tag.
func initEvents(ctx context.Context, cfg *config.NATSConfig, dispatcher eventprocessor.Dispatcher) (*eventComponents, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Event stream disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	ec := &eventComponents{}
	url := cfg.URL
	if cfg.EmbeddedServer {
		serverCfg := eventprocessor.ServerConfigFrom(cfg)
		server, err := eventprocessor.NewEmbeddedServer(&serverCfg)
		if errors.Is(err, eventprocessor.ErrNATSNotEnabled) {
			logging.Warn().Msg("NATS_ENABLED=true but this binary was built without the nats tag; event stream disabled")
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		ec.server = server
		url = server.ClientURL()
		logging.Info().Str("url", url).Bool("jetstream", server.JetStreamEnabled()).Msg("Embedded NATS server started")
	}

	streamCfg := eventprocessor.DefaultStreamConfig(cfg.Subject)
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := eventprocessor.EnsureStreamAt(initCtx, url, &streamCfg); err != nil {
		ec.close()
		if errors.Is(err, eventprocessor.ErrNATSNotEnabled) {
			logging.Warn().Msg("NATS_ENABLED=true but this binary was built without the nats tag; event stream disabled")
			return nil, nil
		}
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	pubCfg := eventprocessor.PublisherConfigFrom(cfg)
	pubCfg.URL = url
	publisher, err := eventprocessor.NewPublisher(pubCfg, logging.NewWatermillLogger())
	if err != nil {
		ec.close()
		return nil, fmt.Errorf("create publisher: %w", err)
	}
	ec.publisher = publisher

	subCfg := eventprocessor.SubscriberConfigFrom(cfg)
	subCfg.URL = url
	subscriber, err := eventprocessor.NewSubscriber(&subCfg, logging.NewWatermillLogger())
	if err != nil {
		ec.close()
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	ec.subscriber = subscriber

	handler, err := eventprocessor.NewNotificationHandler(dispatcher)
	if err != nil {
		ec.close()
		return nil, err
	}
	routerCfg := eventprocessor.DefaultRouterConfig()
	routerCfg.PoisonQueueTopic = pubCfg.Subject + ".dlq"
	consumer, err := eventprocessor.NewConsumer(subscriber, publisher.WatermillPublisher(), pubCfg.Subject, handler, routerCfg)
	if err != nil {
		ec.close()
		return nil, err
	}
	ec.consumer = consumer

	logging.Info().
		Str("subject", pubCfg.Subject).
		Str("durable", subCfg.DurableName).
		Msg("Notification event stream ready")
	return ec, nil
}

// addTo puts the consumer on the messaging layer and, with an embedded
// broker, hands the broker and its clients to the data layer for shutdown.
func (ec *eventComponents) addTo(tree *supervisor.SupervisorTree, shutdownTimeout time.Duration) {
	tree.AddMessagingService(ec.consumer)
	if ec.server != nil {
		tree.AddDataService(services.NewBrokerService(ec.server, shutdownTimeout, ec.clients()...))
		return
	}
	// External broker: only the clients need closing, after the tree stops.
	tree.AddDataService(services.NewBrokerService(externalBroker{}, shutdownTimeout, ec.clients()...))
}

func (ec *eventComponents) clients() []io.Closer {
	var out []io.Closer
	if ec.subscriber != nil {
		out = append(out, ec.subscriber)
	}
	if ec.publisher != nil {
		out = append(out, ec.publisher)
	}
	return out
}

// close releases whatever initEvents managed to create before failing.
func (ec *eventComponents) close() {
	for _, c := range ec.clients() {
		_ = c.Close()
	}
	if ec.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ec.server.Shutdown(ctx)
	}
}

// externalBroker stands in for a broker this process does not own.
type externalBroker struct{}

func (externalBroker) Shutdown(context.Context) error { return nil }
func (externalBroker) IsRunning() bool                { return true }
