package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dispatch-chat/auth"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"API_ADDR,default=ws://localhost:8080"`
	DispatcherID  string `env:"DISPATCHER_ID,required=true"`
	DriverID      string `env:"DRIVER_ID,required=true"`
	AuthSecret    string `env:"AUTH_SECRET,required=true"`
	LogLevel      string `env:"LOG_LEVEL,required=true"`
}

// wireMessage mirrors the frames the stream delivers.
type wireMessage struct {
	ID        string `json:"id"`
	DriverID  string `json:"driverId"`
	Message   string `json:"message"`
	Seen      bool   `json:"seen"`
	Timestamp int64  `json:"timestamp"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle, configuration loading, and
// message streaming. This pattern ensures clean resource management and
// error propagation.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Sign a session token with the server's shared secret. In
	// production the console gets its token from the auth service instead.
	token, err := auth.NewTokenManager(config.AuthSecret, time.Hour).Generate(config.DispatcherID)
	if err != nil {
		return exitConfig, fmt.Errorf("could not sign token: %w", err)
	}

	// 4. Open the room stream.
	roomID := config.DispatcherID + "_" + config.DriverID
	endpoint := fmt.Sprintf("%s/api/rooms/%s/ws?token=%s", config.ServerAddress, roomID, token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	// Defer ensures the connection is closed even if the stream fails later.
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	// Unblock the read loop on Ctrl+C.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	log.Info(fmt.Sprintf(">>> Connected to %s! Listening room %s (Ctrl+C to quit)...",
		config.ServerAddress, roomID))

	// 5. Message reception loop: stored history first, then live messages.
	// Runs until the context is canceled or the server closes the stream.
	for {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			// Normal exit if the user triggered a shutdown.
			if ctx.Err() != nil {
				log.Info("Stopping client...")
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("stream error: %w", err)
		}

		// Display the received message.
		seen := color.Red.Sprint("unseen")
		if msg.Seen {
			seen = color.Green.Sprint("seen")
		}
		log.Info(fmt.Sprintf("[%s] %s (%s): %s",
			time.UnixMilli(msg.Timestamp).Format(time.TimeOnly),
			msg.DriverID,
			seen,
			msg.Message,
		))
	}
}
