package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/niktheblak/web-common/pkg/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/niktheblak/water-quality-logger/internal/server"
	"github.com/niktheblak/water-quality-logger/pkg/calibration"
	"github.com/niktheblak/water-quality-logger/pkg/ingest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingest API server and the optional serial sampler",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			accessToken = viper.GetStringSlice("server.token")
			port        = viper.GetInt("server.port")
			rps         = viper.GetFloat64("server.rate")
			burst       = viper.GetInt("server.burst")
			serialPort  = viper.GetString("serial.port")
		)
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		local, err := openLocalStore(ctx)
		if err != nil {
			return err
		}
		defer local.Close()
		converter := calibration.NewConverter(calibrationStore())
		recorder := ingest.NewRecorder(converter, local, logger)

		var authenticator auth.Authenticator
		if len(accessToken) > 0 {
			logger.LogAttrs(ctx, slog.LevelInfo, "Using authentication", slog.Int("tokens", len(accessToken)))
			authenticator = auth.Static(accessToken...)
		} else {
			logger.LogAttrs(ctx, slog.LevelInfo, "Not using authentication")
			authenticator = auth.AlwaysAllow()
		}
		var limiter *rate.Limiter
		if rps > 0 {
			limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
		httpServer := &http.Server{
			Addr: fmt.Sprintf(":%d", port),
			Handler: server.New(server.Config{
				Recorder:      recorder,
				Readings:      local,
				Calibrations:  converter,
				Authenticator: authenticator,
				Limiter:       limiter,
				Logger:        logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		var wg sync.WaitGroup
		if serialPort != "" {
			device, err := ingest.OpenSerial(ingest.SerialConfig{
				Port:        serialPort,
				Baud:        viper.GetInt("serial.baud"),
				ReadTimeout: viper.GetDuration("serial.timeout"),
			})
			if err != nil {
				return err
			}
			sampler := ingest.NewSampler(recorder, serialPort, logger)
			wg.Add(1)
			go func() {
				defer wg.Done()
				logger.LogAttrs(ctx, slog.LevelInfo, "Sampling serial port", slog.String("port", serialPort))
				n, err := sampler.Follow(ctx, device)
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.LogAttrs(ctx, slog.LevelError, "Serial sampler stopped", slog.Int("readings", n), slog.Any("error", err))
				}
				// no read is pending once Follow has returned
				if err := device.Close(); err != nil {
					logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelError, "Failed to close serial port", slog.Any("error", err))
				}
			}()
		}

		go func() {
			logger.LogAttrs(ctx, slog.LevelInfo, "Starting server", slog.Int("port", port))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.LogAttrs(ctx, slog.LevelError, "Failed to start HTTP server", slog.Any("error", err))
				cancel()
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.LogAttrs(shutdownCtx, slog.LevelError, "Failed to shut down HTTP server", slog.Any("error", err))
			}
		}()
		wg.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("server.port", 8080, "server port")
	serveCmd.Flags().StringSlice("server.token", nil, "allowed API access tokens")
	serveCmd.Flags().Float64("server.rate", 0, "allowed requests per second, 0 disables rate limiting")
	serveCmd.Flags().Int("server.burst", 10, "rate limiter burst size")
	serveCmd.Flags().String("serial.port", "", "serial port of the ADC, empty disables sampling")
	serveCmd.Flags().Int("serial.baud", ingest.DefaultBaud, "serial port baud rate")
	serveCmd.Flags().Duration("serial.timeout", ingest.DefaultReadTimeout, "serial port read timeout")

	cobra.CheckErr(viper.BindPFlags(serveCmd.Flags()))

	rootCmd.AddCommand(serveCmd)
}
