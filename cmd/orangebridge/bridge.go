package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/munnme/orangecarrier2-bot/bridge"
	"github.com/munnme/orangecarrier2-bot/db"
	"github.com/munnme/orangecarrier2-bot/internal/healthcheck"
	"github.com/munnme/orangecarrier2-bot/internal/logutil"
	"github.com/munnme/orangecarrier2-bot/internal/retryutil"
	"github.com/munnme/orangecarrier2-bot/internal/telegramclient"
	"github.com/munnme/orangecarrier2-bot/internal/tokenstore"
	"github.com/munnme/orangecarrier2-bot/seen"
	"github.com/munnme/orangecarrier2-bot/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newBridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Run the OrangeCarrier -> Telegram bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			botToken := strings.TrimSpace(flagOrViperString(cmd, "bot-token", "telegram.bot_token"))
			if botToken == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --bot-token or ORANGE_BRIDGE_TELEGRAM_BOT_TOKEN)")
			}
			chatID := flagOrViperInt64(cmd, "chat-id", "telegram.chat_id")
			if chatID == 0 {
				return fmt.Errorf("missing telegram.chat_id (set via --chat-id or ORANGE_BRIDGE_TELEGRAM_CHAT_ID)")
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			tokens, err := tokenstore.New(tokenFilePath())
			if err != nil {
				return err
			}
			orangeToken, err := resolveOrangeToken(tokens, flagOrViperString(cmd, "orange-token", "orange.token"))
			if err != nil {
				return err
			}

			variant := strings.ToLower(strings.TrimSpace(flagOrViperString(cmd, "transport", "orange.transport")))
			if variant != "htmlpoll" && orangeToken == "" {
				return fmt.Errorf("missing orange.token (set via --orange-token or ORANGE_BRIDGE_ORANGE_TOKEN)")
			}
			if variant == "htmlpoll" && orangeToken == "" {
				logger.Warn("bridge_poll_without_cookie")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Dedup ledger
			dbCfg := db.DefaultConfig()
			dbCfg.DSN = viper.GetString("db.dsn")
			dbCfg.SQLite.BusyTimeoutMs = viper.GetInt("db.sqlite.busy_timeout_ms")
			dbCfg.SQLite.WAL = viper.GetBool("db.sqlite.wal")
			dbCfg.SQLite.ForeignKeys = viper.GetBool("db.sqlite.foreign_keys")
			gdb, err := db.Open(dbCfg)
			if err != nil {
				return err
			}
			store, err := seen.NewStore(gdb, logger)
			if err != nil {
				return err
			}

			// Delivery sink
			api := telegramclient.New(&http.Client{Timeout: 60 * time.Second}, viper.GetString("telegram.base_url"), botToken)
			sink, err := bridge.NewSinkAdapter(bridge.SinkAdapterOptions{
				SendText: func(ctx context.Context, text string) error {
					return api.SendMessage(ctx, chatID, text)
				},
				SendAudio: func(ctx context.Context, audioPath, caption string) error {
					return api.SendAudio(ctx, chatID, audioPath, caption)
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}

			pipeline, err := bridge.NewPipeline(bridge.PipelineOptions{
				Store:  store,
				Sink:   sink,
				Audio:  bridge.NewAudioDownloader(bridge.AudioDownloaderOptions{}),
				Logger: logger,
			})
			if err != nil {
				return err
			}
			normalizer := bridge.NewNormalizer(bridge.NormalizerOptions{Logger: logger})

			// Upstream
			trans, err := newTransportFromConfig(cmd, variant, logger)
			if err != nil {
				return err
			}
			sup, err := transport.NewSupervisor(transport.SupervisorOptions{
				Transport: trans,
				Token:     orangeToken,
				Backoff:   viper.GetDuration("orange.backoff"),
				Logger:    logger,
				Emit: func(raw bridge.RawEvent) {
					for _, ev := range normalizer.Normalize(raw) {
						pipeline.Process(ctx, ev)
					}
				},
				Notify: func(ctx context.Context, text string) {
					if err := sink.Deliver(ctx, text, ""); err != nil {
						logger.Warn("notify_error", "error", err.Error())
					}
				},
			})
			if err != nil {
				return err
			}

			// Keep-alive HTTP
			if listen := healthcheck.NormalizeListen(viper.GetString("health.listen")); listen != "" {
				healthServer, err := healthcheck.StartServer(ctx, logger, listen, "OrangeCarrier bridge active.")
				if err != nil {
					logger.Warn("healthcheck_start_error", "addr", listen, "error", err.Error())
				} else {
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
						_ = healthServer.Shutdown(shutdownCtx)
						cancel()
					}()
				}
			}

			// Operator command surface over the same bot.
			go runCommandLoop(ctx, logger, api, chatID, sup, tokens)

			retryutil.AsyncRetry(logger, "startup_notice", 2*time.Second, 30*time.Second, func(ctx context.Context) error {
				return sink.Deliver(ctx, "Bridge started. Connecting to OrangeCarrier...", "")
			})

			logger.Info("bridge_start",
				"transport", trans.Name(),
				"chat_id", chatID,
				"backoff", viper.GetDuration("orange.backoff").String(),
			)
			return sup.Run(ctx)
		},
	}

	cmd.Flags().String("bot-token", "", "Telegram bot token.")
	cmd.Flags().Int64("chat-id", 0, "Destination Telegram chat id.")
	cmd.Flags().String("orange-token", "", "OrangeCarrier auth token (or session cookie for htmlpoll).")
	cmd.Flags().String("transport", "socketio", "Upstream transport: socketio|wsframe|htmlpoll.")
	cmd.Flags().Duration("poll-interval", 0, "Poll interval for the htmlpoll transport.")

	return cmd
}

func newTransportFromConfig(cmd *cobra.Command, variant string, logger *slog.Logger) (transport.Transport, error) {
	baseURL := strings.TrimSpace(viper.GetString("orange.base_url"))
	switch variant {
	case "", "socketio":
		return transport.NewSocketIO(transport.SocketIOOptions{BaseURL: baseURL})
	case "wsframe":
		return transport.NewWSFrame(transport.WSFrameOptions{URL: wsFrameURL(baseURL)})
	case "htmlpoll":
		interval := flagOrViperDuration(cmd, "poll-interval", "orange.poll_interval")
		return transport.NewHTMLPoll(transport.HTMLPollOptions{
			URL:      strings.TrimRight(baseURL, "/") + "/livecalls",
			Interval: interval,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unknown orange.transport: %s (want socketio|wsframe|htmlpoll)", variant)
	}
}

func wsFrameURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/live"
}

func tokenFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean("./orange_token.txt")
	}
	return filepath.Join(home, ".orangebridge", "orange_token.txt")
}

// resolveOrangeToken prefers a previously saved token file over env/flag
// config, and seeds the file from config on first run so later /settoken
// updates and initial deploys behave the same.
func resolveOrangeToken(tokens *tokenstore.Store, configured string) (string, error) {
	saved, ok, err := tokens.Load()
	if err != nil {
		return "", err
	}
	if ok && saved != "" {
		return saved, nil
	}
	configured = strings.TrimSpace(configured)
	if configured != "" {
		if err := tokens.Save(configured); err != nil {
			return "", err
		}
	}
	return configured, nil
}
