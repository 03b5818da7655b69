// Package monitor renders a live task table for the crew daemon.
//
// Rows come from the status snapshot the daemon writes to disk, refreshed
// on a short poll. When the gateway is reachable the monitor also
// subscribes to its WebSocket feed and folds events in as they happen, so
// status flips show up between polls.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dohr-michael/crew/clients/ws"
	"github.com/dohr-michael/crew/internal/config"
	"github.com/dohr-michael/crew/internal/events"
	wsprotocol "github.com/dohr-michael/crew/internal/gateway/ws"
)

// Options configure the monitor.
type Options struct {
	// SnapshotPath is the daemon status file. Defaults to the status
	// file under the crew directory.
	SnapshotPath string
	// GatewayURL is the gateway base URL, e.g. http://127.0.0.1:18720.
	// Empty disables the live feed and the monitor polls only.
	GatewayURL string
	// PollInterval is the snapshot refresh interval. Defaults to 2s.
	PollInterval time.Duration
}

// Run starts the monitor and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	if opts.SnapshotPath == "" {
		opts.SnapshotPath = config.StatusPath()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}

	app := newApp(opts.SnapshotPath, opts.PollInterval)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if opts.GatewayURL != "" {
		wsURL := strings.TrimRight(opts.GatewayURL, "/") + "/api/ws"
		client, err := ws.Dial(ctx, wsURL)
		if err != nil {
			// The daemon may simply not be running. The snapshot
			// poll still works off the last written status file.
			slog.Debug("monitor live feed unavailable", "url", wsURL, "error", err)
		} else {
			defer client.Close()
			app.wsOnline = true
			go forwardEvents(p, client)
		}
	}

	_, err := p.Run()
	return err
}

// forwardEvents pumps gateway event frames into the running program.
func forwardEvents(p *tea.Program, client *ws.Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			p.Send(wsClosedMsg{err: err})
			return
		}
		if frame.Type != wsprotocol.FrameTypeEvent {
			continue
		}
		var e events.Event
		if err := json.Unmarshal(frame.Payload, &e); err != nil {
			continue
		}
		p.Send(eventMsg{event: e})
	}
}
