package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/munnme/orangecarrier2-bot/internal/retryutil"
	"github.com/munnme/orangecarrier2-bot/internal/telegramclient"
	"github.com/munnme/orangecarrier2-bot/internal/tokenstore"
	"github.com/munnme/orangecarrier2-bot/transport"
)

const commandPollTimeout = 30 * time.Second

// runCommandLoop long-polls the bot for operator commands in the destination
// chat. It shares only the supervisor and token store with the pipeline and
// never stops on transient Telegram errors.
func runCommandLoop(ctx context.Context, logger *slog.Logger, api *telegramclient.Client, chatID int64, sup *transport.Supervisor, tokens *tokenstore.Store) {
	var offset int64
	for ctx.Err() == nil {
		updates, next, err := api.GetUpdates(ctx, offset, commandPollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("telegram_get_updates_error", "error", err.Error())
			if err := retryutil.SleepWithContext(ctx, 5*time.Second); err != nil {
				return
			}
			continue
		}
		offset = next

		for _, u := range updates {
			msg := u.Message
			if msg == nil || msg.Chat == nil || msg.Chat.ID != chatID {
				continue
			}
			handleCommand(ctx, logger, api, chatID, sup, tokens, strings.TrimSpace(msg.Text))
		}
	}
}

func handleCommand(ctx context.Context, logger *slog.Logger, api *telegramclient.Client, chatID int64, sup *transport.Supervisor, tokens *tokenstore.Store, text string) {
	reply := func(s string) {
		if err := api.SendMessage(ctx, chatID, s); err != nil {
			logger.Warn("command_reply_error", "error", err.Error())
		}
	}

	cmd, arg, _ := strings.Cut(text, " ")
	switch cmd {
	case "/ping":
		reply("Pong! Bridge is alive.")
	case "/status":
		reply(fmt.Sprintf("Bridge is running.\nUpstream: %s", sup.State()))
	case "/settoken":
		arg = strings.TrimSpace(arg)
		if arg == "" {
			reply("Usage: /settoken <orange_token>")
			return
		}
		if err := tokens.Save(arg); err != nil {
			logger.Warn("token_save_error", "error", err.Error())
		}
		sup.SetToken(arg)
		reply("Orange token updated. Reconnecting upstream...")
	}
}
