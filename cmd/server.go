package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "sensor-dashboard/internal"
	"sensor-dashboard/internal/auth"
	"sensor-dashboard/internal/config"
	"sensor-dashboard/internal/feed"
	"sensor-dashboard/internal/ingest"
	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/nonce"
	"sensor-dashboard/internal/routes"
	"sensor-dashboard/internal/storage"
	"sensor-dashboard/internal/trigger"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

const SUPPORT_QR_FILE = "web/assets/support_qr.png"

const shutdownTimeout = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the dashboard server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := ServerMain(ctx, config.Cfg, provider); err != nil {
			slog.Error("Server stopped with error", "error", err)
			os.Exit(1)
		}
	},
}

// Generate static QR code for support
func genSupportQr(url string) {
	qrCode, err := qrcode.Encode(url, qrcode.Medium, config.QR_IMAGE_SIZE)
	if err != nil {
		slog.Error("Error generating support QR code", "error", err)
		return
	}

	// Save the QR code to a file
	if err := os.WriteFile(SUPPORT_QR_FILE, qrCode, 0644); err != nil {
		slog.Error("Error saving support QR code", "error", err)
	} else {
		slog.Debug("Support QR code saved successfully", "file_path", SUPPORT_QR_FILE, "support_url", url)
	}
}

// startIngest starts the embedded broker, or subscribes to an external one.
// Without either, readings only arrive through the CLI.
func startIngest(ctx context.Context, cfg config.MQTTConfig, recorder *ingest.Recorder) error {
	switch {
	case cfg.Embedded.Enabled:
		broker, err := ingest.NewBroker(cfg, recorder)
		if err != nil {
			return err
		}
		return broker.Start(ctx)
	case cfg.Broker != "":
		return ingest.NewSubscriber(cfg, recorder).Start(ctx)
	default:
		slog.Warn("No MQTT broker configured, readings are only recorded from the CLI")
		return nil
	}
}

func ServerMain(ctx context.Context, cfg *config.Config, storageProvider storage.Provider) error {
	if cfg == nil {
		panic("Config not initialized.")
	}

	// Use the provider passed from cobra command (already initialized)
	if storageProvider == nil {
		return storage.ErrNoStorage
	}

	if cfg.SupportURL != "" {
		genSupportQr(cfg.SupportURL)
	}

	policy, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	nonces, err := nonce.NewStore(cfg, storageProvider)
	if err != nil {
		return fmt.Errorf("failed to initialize nonce store: %w", err)
	}
	defer nonces.Close()

	m := metrics.New()
	hub := feed.NewHub()
	hub.OnDrop(func(topic feed.Topic) {
		m.FeedDropped(string(topic))
	})

	// The mirror keeps sensor rows in step with the newest history entry.
	mirror := trigger.NewMirror(storageProvider, hub, m)
	recorder := ingest.NewRecorder(storageProvider, hub, m).OnCreate(mirror.Handle)
	if err := startIngest(ctx, cfg.MQTT, recorder); err != nil {
		return err
	}

	issuer := auth.NewIssuer(cfg.Secret, time.Duration(cfg.UserAuthTTL)*24*time.Hour, nonces)
	env := routes.NewEnv(cfg, storageProvider, policy, issuer, hub, m)

	engine, err := app.HTTPServer(cfg, env)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: engine,
		// Open event streams end with the server.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "address", cfg.ListenAddress)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
