// Command devicesim is a stand-in motor controller that connects to the
// gateway's device endpoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"motor_gateway/internal/logger"
	"motor_gateway/internal/simulator"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	pflag.String("url", "ws://localhost:8080/ws/device", "gateway device endpoint")
	pflag.String("device-id", "esp32_default", "device id announced to the gateway")
	pflag.String("token", "", "device token issued by POST /api/v1/devices/token")
	pflag.Duration("interval", time.Second, "telemetry interval")
	pflag.Duration("max-backoff", 30*time.Second, "longest wait between reconnects")
	pflag.Uint("max-retries", 0, "reconnect attempts, 0 retries forever")
	pflag.String("log-level", logger.InfoLevel, "debug, info, warn or error")
	pflag.Parse()

	bind := map[string]string{
		"sim.url":         "url",
		"sim.device_id":   "device-id",
		"sim.token":       "token",
		"sim.interval":    "interval",
		"sim.max_backoff": "max-backoff",
		"sim.max_retries": "max-retries",
		"log.level":       "log-level",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, pflag.Lookup(flag))
	}
	viper.SetEnvPrefix("gateway")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	log := logger.Get(viper.GetString("log.level"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := simulator.NewClient(simulator.Config{
		URL:        viper.GetString("sim.url"),
		DeviceID:   viper.GetString("sim.device_id"),
		Token:      viper.GetString("sim.token"),
		Interval:   viper.GetDuration("sim.interval"),
		MaxBackoff: viper.GetDuration("sim.max_backoff"),
		MaxRetries: viper.GetUint("sim.max_retries"),
	}, simulator.NewController(), log)

	if err := client.Run(ctx); err != nil {
		log.Fatalw("simulator stopped", "err", err)
	}
	log.Infow("simulator stopped")
}
