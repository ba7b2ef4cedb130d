/*
Package main is the entry point for the example chat bot.

It is responsible for loading configuration, initializing the global logging system,
joining the configured chat room, registering event listeners,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure the session leaves the room cleanly on shutdown.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sechat/internal/app/chat"
	"sechat/internal/app/chat/events"
	"sechat/internal/configs"
	"sechat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("chat_host", cfg.ChatHost).
		Int64("room_id", cfg.RoomID).
		Msg("Configuration loaded successfully")

	host, ok := chat.ParseHost(cfg.ChatHost)
	if !ok {
		logx.Fatal(fmt.Errorf("unknown chat host %q", cfg.ChatHost), "Unsupported chat host")
	}

	cookies, err := cfg.LoadCookies()
	if err != nil {
		logx.Fatal(err, "Failed to load credential cookies")
	}

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := chat.NewClient(cookies)

	room, err := client.JoinRoom(ctx, host, cfg.RoomID)
	if err != nil {
		logx.Fatal(err, "Failed to join room")
	}

	// Greet users as they enter and answer mentions.
	chat.On(room, func(event events.UserEntered) {
		logx.Logger().Info().
			Str("user_name", event.UserName).
			Int64("user_id", event.UserID).
			Msg("User entered the room")
	})
	chat.On(room, func(event events.UserMentioned) {
		reply, err := room.ReplyTo(ctx, event.MessageID, "hello!")
		if err != nil {
			logx.Error(err, "Failed to answer mention")
			return
		}
		logx.Logger().Debug().Int64("message_id", reply).Msg("Answered mention")
	})

	if _, err := room.Send(ctx, "echobot online"); err != nil {
		logx.Error(err, "Failed to post greeting")
	}

	// Wait for interrupt signal, then leave the room with a bounded timeout.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Leaving room...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	client.Close(shutdownCtx)

	logx.Info("Session closed.")
}
