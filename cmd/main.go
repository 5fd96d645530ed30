package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"motor_gateway/internal/gateway"
	"motor_gateway/internal/handlers"
	"motor_gateway/internal/logger"
	"motor_gateway/internal/repository"
	"motor_gateway/internal/repository/db"
	"motor_gateway/internal/server"
	"motor_gateway/internal/service"

	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configErr := loadConfig()

	// init logger
	log := logger.Init(viper.GetString("log.level"), viper.GetString("log.format"))
	if configErr != nil {
		log.Warnw("config file not loaded; using defaults and environment", "err", configErr)
	}

	// open DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	services := service.NewService(repos, serviceConfig(), log)
	gw := gateway.New(gatewayConfig(), services.Authorization, services.EventLog, log)
	services.WithForwarder(gw)
	apiHandler := handlers.NewHandler(services, gw, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// no device is connected before the gateway runs
	if n, err := services.Devices.ResetPresence(ctx); err != nil {
		log.Errorw("device_presence_reset_failed", "err", err)
	} else if n > 0 {
		log.Infow("device_presence_reset", "devices", n)
	}

	go services.EventLog.Run(ctx)
	go gw.Run(ctx)

	// start HTTP server
	srv := server.New(server.Options{})
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, gw, srv, log)
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("log.format", logger.FormatConsole)
	viper.SetDefault("db.path", "app.db")

	viper.SetDefault("auth.token_ttl", service.DefaultTokenTTL)
	viper.SetDefault("auth.device_token_ttl", service.DefaultDeviceTokenTTL)

	d := gateway.DefaultConfig()
	viper.SetDefault("gateway.heartbeat_interval", d.HeartbeatInterval)
	viper.SetDefault("gateway.write_wait", d.WriteWait)
	viper.SetDefault("gateway.handshake_timeout", d.HandshakeTimeout)
	viper.SetDefault("gateway.max_message_bytes", d.MaxMessageBytes)
	viper.SetDefault("gateway.send_buffer", d.SendBuffer)
	viper.SetDefault("gateway.event_buffer", d.EventBuffer)

	viper.SetDefault("eventlog.buffer", 256)
}

// loadConfig reads configs/config.yml; GATEWAY_* variables override it,
// e.g. GATEWAY_AUTH_SIGNING_KEY for auth.signing_key.
func loadConfig() error {
	setDefaults()
	viper.SetEnvPrefix("gateway")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

func serviceConfig() service.Config {
	return service.Config{
		Auth: service.AuthConfig{
			SigningKey:       viper.GetString("auth.signing_key"),
			DeviceSigningKey: viper.GetString("auth.device_signing_key"),
			TokenTTL:         viper.GetDuration("auth.token_ttl"),
			DeviceTokenTTL:   viper.GetDuration("auth.device_token_ttl"),
		},
		EventBuffer: viper.GetInt("eventlog.buffer"),
	}
}

func gatewayConfig() gateway.Config {
	return gateway.Config{
		HeartbeatInterval: viper.GetDuration("gateway.heartbeat_interval"),
		WriteWait:         viper.GetDuration("gateway.write_wait"),
		HandshakeTimeout:  viper.GetDuration("gateway.handshake_timeout"),
		MaxMessageBytes:   viper.GetInt64("gateway.max_message_bytes"),
		SendBuffer:        viper.GetInt("gateway.send_buffer"),
		EventBuffer:       viper.GetInt("gateway.event_buffer"),
	}
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	log.Infow("opening sqlite", "path", dbPath)
	return db.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, gw *gateway.Gateway, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop the gateway loop and the event writer; the gateway closes every socket with 1001
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	select {
	case <-gw.Done():
	case <-ctx.Done():
		log.Warnw("gateway did not stop in time")
	}

	// allow in-flight requests to complete
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
