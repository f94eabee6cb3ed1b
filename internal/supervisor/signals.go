package supervisor

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// ShutdownSignals end the process once the current session winds down.
var ShutdownSignals = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGQUIT, unix.SIGHUP}

// MaintenanceSignal compacts the store while connected and reconnects
// immediately while disconnected.
const MaintenanceSignal = unix.SIGUSR1

// NotifySignals returns a context cancelled by any of ShutdownSignals and a
// channel receiving MaintenanceSignal. Call stop to release both.
func NotifySignals(parent context.Context) (ctx context.Context, maintenance <-chan os.Signal, stop func()) {
	ctx, cancel := signal.NotifyContext(parent, ShutdownSignals...)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, MaintenanceSignal)

	return ctx, ch, func() {
		signal.Stop(ch)
		cancel()
	}
}
