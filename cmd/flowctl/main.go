// flowctl is a small control-channel caller for operating a running
// coordinator: submit credentials, push trigger definitions, send
// messages and actions, and inspect channel/role pickers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kmcbride3/discordflow/internal/auth"
	"github.com/kmcbride3/discordflow/internal/rpc"
)

var commands = map[string]string{
	"credentials": rpc.TypeCredentials,
	"channels":    rpc.TypeListChannels,
	"roles":       rpc.TypeListRoles,
	"message":     rpc.TypeSendMessage,
	"prompt":      rpc.TypeSendPrompt,
	"action":      rpc.TypeSendAction,
	"execution":   rpc.TypeExecution,
	"trigger":     rpc.TypeTrigger,
	"status":      rpc.TypeBotStatus,
}

func main() {
	_ = godotenv.Load()

	url := flag.String("url", envOr("COORDINATOR_URL", "ws://127.0.0.1:8787/rpc"), "coordinator websocket url")
	secret := flag.String("secret", os.Getenv("RPC_SECRET"), "shared control-channel secret")
	data := flag.String("data", "", "JSON request payload, or - to read stdin")
	flag.Parse()

	msgType, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "usage: flowctl [flags] <command>\ncommands:")
		for name := range commands {
			fmt.Fprintf(os.Stderr, " %s", name)
		}
		fmt.Fprintln(os.Stderr)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(msgType, *url, *secret, *data, logger); err != nil {
		logger.Error("request failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(msgType, url, secret, data string, logger *slog.Logger) error {
	payload, err := readPayload(data)
	if err != nil {
		return err
	}

	token := ""
	if secret != "" {
		token, _, err = auth.GenerateCallerToken("flowctl", secret, time.Hour)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	caller, err := rpc.Dial(ctx, url, token, logger)
	if err != nil {
		return err
	}
	defer caller.Close()

	var reply json.RawMessage
	if err := caller.Call(ctx, msgType, payload, &reply); err != nil {
		return err
	}
	if len(reply) == 0 {
		return nil
	}
	var pretty json.RawMessage = reply
	if indented, err := json.MarshalIndent(reply, "", "  "); err == nil {
		pretty = indented
	}
	fmt.Println(string(pretty))
	return nil
}

func readPayload(data string) (json.RawMessage, error) {
	switch data {
	case "":
		return json.RawMessage("{}"), nil
	case "-":
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return json.RawMessage(raw), nil
	default:
		if !json.Valid([]byte(data)) {
			return nil, fmt.Errorf("payload is not valid JSON")
		}
		return json.RawMessage(data), nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
