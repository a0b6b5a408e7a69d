// Command pktreplay reads link-layer frames from a capture file or a
// live interface and reinjects them into an interface (or discards them)
// at a controllable rate.
package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sensorfleet/pktreplay/internal/config"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	exitCode := 0
	app := config.App(version, func(p config.Params) error {
		exitCode = runPipeline(p)
		return nil
	})

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Error("configuration error")
		exitCode = -1
	}

	os.Exit(exitCode)
}
