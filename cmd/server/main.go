/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package main is the entry point for starting the flow server.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/asgardeo/stageflow/internal/flow"
	"github.com/asgardeo/stageflow/internal/flow/stage"
	"github.com/asgardeo/stageflow/internal/system/cert"
	"github.com/asgardeo/stageflow/internal/system/config"
	"github.com/asgardeo/stageflow/internal/system/database/provider"
	"github.com/asgardeo/stageflow/internal/system/log"
	"github.com/asgardeo/stageflow/internal/system/metrics"
	redisprovider "github.com/asgardeo/stageflow/internal/system/redis"
)

const (
	flowAPIPrefix      = "/api/v3/flows/"
	defaultMetricsPath = "/metrics"
	shutdownTimeout    = 15 * time.Second
)

func main() {
	logger := log.GetLogger()
	defer logger.Sync()

	serverHome := getServerHome(logger)

	cfg := initConfigurations(logger, serverHome)
	if cfg == nil {
		logger.Fatal("Failed to initialize configurations")
	}

	components, err := flow.Initialize(stage.NewRegistry())
	if err != nil {
		logger.Fatal("Failed to initialize flow components", log.Error(err))
	}

	mux := initMultiplexer(cfg, components)
	startServer(logger, cfg, mux, components, serverHome)
}

// getServerHome retrieves and returns the server home directory.
func getServerHome(logger *log.Logger) string {
	serverHome := ""
	serverHomeFlag := flag.String("home", "", "Path to the server home directory")
	flag.Parse()

	if *serverHomeFlag != "" {
		logger.Info("Using server home from command line argument", log.String("home", *serverHomeFlag))
		serverHome = *serverHomeFlag
	} else {
		dir, dirErr := os.Getwd()
		if dirErr != nil {
			logger.Fatal("Failed to get current working directory", log.Error(dirErr))
		}
		serverHome = dir
	}

	return serverHome
}

// initConfigurations loads the deployment configuration and initializes the server runtime.
func initConfigurations(logger *log.Logger, serverHome string) *config.Config {
	configFilePath := path.Join(serverHome, "repository/conf/deployment.yaml")
	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		logger.Fatal("Failed to load configurations", log.Error(err))
	}

	if err := config.InitializeServerRuntime(serverHome, cfg); err != nil {
		logger.Fatal("Failed to initialize server runtime", log.Error(err))
	}
	return cfg
}

// initMultiplexer registers the flow APIs and, when enabled, the metrics endpoint.
func initMultiplexer(cfg *config.Config, components *flow.Components) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(flowAPIPrefix, components.Handler)

	if cfg.Metrics.Enabled {
		metrics.Register(prometheus.DefaultRegisterer)
		metricsPath := cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = defaultMetricsPath
		}
		mux.Handle(metricsPath, metrics.Handler())
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// startServer serves requests until the process is interrupted, then drains connections and releases resources.
func startServer(logger *log.Logger, cfg *config.Config, mux *http.ServeMux, components *flow.Components,
	serverHome string) {
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Hostname, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	listener, err := listen(logger, cfg, serverAddr, serverHome)
	if err != nil {
		logger.Fatal("Failed to start listener", log.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve requests", log.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down the flow server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down the server gracefully", log.Error(err))
	}

	if err := components.Close(); err != nil {
		logger.Error("Failed to close flow components", log.Error(err))
	}
	if err := provider.GetDBProvider().Close(); err != nil {
		logger.Error("Failed to close database connections", log.Error(err))
	}
	if err := redisprovider.GetRedisProvider().Close(); err != nil {
		logger.Error("Failed to close the redis client", log.Error(err))
	}
}

// listen opens the server listener, with TLS unless the server is configured as HTTP only.
func listen(logger *log.Logger, cfg *config.Config, serverAddr, serverHome string) (net.Listener, error) {
	if cfg.Server.HTTPOnly {
		logger.Info("TLS is not enabled, starting server without TLS")
		ln, err := net.Listen("tcp", serverAddr)
		if err == nil {
			logger.Info("Flow server started (HTTP)...", log.String("address", serverAddr))
		}
		return ln, err
	}

	tlsConfig, err := cert.GetTLSConfig(cfg, serverHome)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS configuration: %w", err)
	}
	ln, err := tls.Listen("tcp", serverAddr, tlsConfig)
	if err == nil {
		logger.Info("Flow server started (HTTPS)...", log.String("address", serverAddr))
	}
	return ln, err
}
