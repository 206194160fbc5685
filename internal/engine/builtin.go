package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kmcbride3/discordflow/internal/gateway"
)

// Built-in admin commands registered once per process during the first
// credential handshake. They are gated on the administrator permission
// and handled before trigger-defined commands.
const (
	builtinClear = "clear"
	builtinTest  = "test"
	builtinLogs  = "logs"
)

// BuiltinCommandSpecs returns the registration shape of the built-in
// commands, carried alongside every trigger-defined command set.
func BuiltinCommandSpecs() []gateway.CommandSpec {
	return []gateway.CommandSpec{
		{
			Name:        builtinClear,
			Description: "Delete messages",
			Field: &gateway.CommandField{
				Type:        gateway.FieldInteger,
				Description: "Number of last messages to delete",
			},
		},
		{
			Name:        builtinTest,
			Description: "Toggle test mode",
			Field: &gateway.CommandField{
				Type:        gateway.FieldBoolean,
				Description: "Specify if test mode is enabled or not",
			},
		},
		{
			Name:        builtinLogs,
			Description: "Display or configure logs",
			Field: &gateway.CommandField{
				Type:        gateway.FieldText,
				Description: "auto/stop/clear or number of logs to display (max 100) - default last 100 logs",
			},
		},
	}
}

// runBuiltinCommand handles the built-in commands. Reports whether the
// event was consumed.
func (e *Engine) runBuiltinCommand(ctx context.Context, ev *gateway.CommandEvent) bool {
	switch ev.Name {
	case builtinClear, builtinTest, builtinLogs:
	default:
		return false
	}
	if !ev.Admin {
		return true
	}

	var reply string
	switch ev.Name {
	case builtinClear:
		reply = e.runClear(ctx, ev)
	case builtinTest:
		reply = e.runTest(ev)
	case builtinLogs:
		reply = e.runLogs(ctx, ev)
	}
	e.reply(ctx, ev.InteractionID, reply, true)
	return true
}

func (e *Engine) runClear(ctx context.Context, ev *gateway.CommandEvent) string {
	count := 100
	if n, err := strconv.Atoi(strings.TrimSpace(ev.Input)); err == nil && n > 0 && n <= 100 {
		count = n
	}
	if err := e.gateway.BulkDelete(ctx, ev.ChannelID, count); err != nil {
		e.session.Log("clear failed: " + err.Error())
	}
	return "Done!"
}

func (e *Engine) runTest(ev *gateway.CommandEvent) string {
	enabled := false
	switch strings.TrimSpace(ev.Input) {
	case "true":
		e.session.SetTestMode(true)
		enabled = true
	case "false":
		e.session.SetTestMode(false)
	default:
		enabled = e.session.ToggleTestMode()
	}
	return fmt.Sprintf("Test mode: %t", enabled)
}

func (e *Engine) runLogs(ctx context.Context, ev *gateway.CommandEvent) string {
	input := strings.TrimSpace(ev.Input)
	switch input {
	case "auto":
		e.session.SetAutoLogs(true, ev.ChannelID)
		return "Auto logs activated"
	case "stop":
		e.session.SetAutoLogs(false, "")
		return "Auto logs disabled"
	case "clear":
		e.session.ClearLogs()
		return "Done!"
	}

	count := 100
	if input != "" {
		n, err := strconv.Atoi(input)
		if err != nil || n <= 0 || n > 100 {
			return "Invalid parameter"
		}
		count = n
	}
	logs := e.session.Logs(count)
	if len(logs) == 0 {
		return "There is no log"
	}
	var content strings.Builder
	for _, line := range logs {
		content.WriteString("**" + line + "**\n")
	}
	if _, err := e.gateway.SendMessage(ctx, ev.ChannelID, content.String()); err != nil {
		e.session.Log("logs dump failed: " + err.Error())
	}
	return "Logs:"
}
