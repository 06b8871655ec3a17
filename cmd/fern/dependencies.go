package main

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectoinject/loglevel"
	"github.com/Gobusters/ectologger"

	notificationroutes "github.com/Ramsey-B/fern/pkg/routes/notification"
	partnerroutes "github.com/Ramsey-B/fern/pkg/routes/partner"
)

const containerID = "fern"

// registerDependencies publishes what the HTTP handlers resolve per request.
// Calling it again replaces the registered instances.
func (a *app) registerDependencies(id string) (ectocontainer.DIContainer, error) {
	container := ectoinject.GetContainer(id)
	if container == nil {
		var err error
		container, err = ectoinject.NewDIContainer(ectocontainer.DIContainerConfig{
			ID:                       id,
			AllowCaptiveDependencies: true,
			LoggerConfig: &ectocontainer.DIContainerLoggerConfig{
				Prefix:   "ectoinject",
				LogLevel: loglevel.WARN,
				Enabled:  true,
				LogFunc: func(ctx context.Context, level, msg string) {
					log := a.logger.WithContext(ctx)
					if level == loglevel.WARN {
						log.Warn(msg)
						return
					}
					log.Debug(msg)
				},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create dependency container: %w", err)
		}
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, a.logger); err != nil {
		return nil, err
	}
	if a.partners != nil {
		if err := ectoinject.RegisterInstance[partnerroutes.Store](container, a.partners); err != nil {
			return nil, err
		}
	}
	if a.processor != nil {
		if err := ectoinject.RegisterInstance[notificationroutes.Processor](container, a.processor); err != nil {
			return nil, err
		}
	}
	return container, nil
}
