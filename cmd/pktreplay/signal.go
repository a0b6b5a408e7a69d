package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sensorfleet/pktreplay/internal/control"
)

// installSignalHandlers starts a goroutine that sets stop on SIGINT or
// SIGTERM, in the shape of the teacher's client/signal.go: signal.Notify
// into a channel, a range loop dispatching on what arrives. The teacher
// dumps diagnostics on SIGUSR1; here both handled signals do the same
// thing, request termination.
func installSignalHandlers(stop *control.Stop) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range ch {
			logrus.WithField("component", "signal").WithField("signal", sig).Info("termination requested")
			stop.Set()
		}
	}()
}
