package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sensorfleet/pktreplay/internal/capture"
	"github.com/sensorfleet/pktreplay/internal/channel"
	"github.com/sensorfleet/pktreplay/internal/config"
	"github.com/sensorfleet/pktreplay/internal/control"
	"github.com/sensorfleet/pktreplay/internal/replay"
)

// buildDelayer picks the Delayer strategy the selection rule in spec.md
// §4.4 resolved into p.Rate.
func buildDelayer(p config.Params) replay.Delayer {
	switch p.Rate {
	case config.RatePps:
		return replay.NewPpsDelay(p.Pps)
	case config.RateBps:
		return replay.NewBpsDelay(p.Bps)
	case config.RateFull:
		return replay.NoDelay{}
	default:
		return &replay.PacketRateDelay{}
	}
}

// openSink opens the configured output: a live interface when named, or
// the null sink otherwise.
func openSink(output string) (capture.Sink, error) {
	if output == "" {
		return capture.OpenNullSink()
	}
	return capture.OpenInterfaceSink(output)
}

// printReports is the trivial printer task (§4.5): it writes every
// formatted summary it receives on its own line, until the channel is
// closed.
func printReports(reports <-chan string) {
	for line := range reports {
		fmt.Println(line)
	}
}

// runPipeline wires together the channel, reader, writer, and optional
// stats printer for one replay run, and returns the process exit code
// (0 on success, -1 on any unmasked failure), per spec.md §7.
func runPipeline(p config.Params) int {
	stop := &control.Stop{}
	installSignalHandlers(stop)

	tx, rx := channel.New(p.Hi, p.Lo, stop)

	var stats *replay.Stats
	var reports <-chan string
	printerDone := make(chan struct{})
	if p.StatsInterval > 0 {
		stats, reports = replay.NewPeriodicStats(p.StatsInterval)
		go func() {
			defer close(printerDone)
			logrus.WithField("component", "stat-reader").Trace("printer starting")
			printReports(reports)
		}()
	} else {
		stats = replay.NewStats()
		close(printerDone)
	}

	sink, err := openSink(p.Output)
	if err != nil {
		logrus.WithError(err).Error("unable to open output")
		return -1
	}
	defer sink.Close()

	writer := &replay.Writer{Sink: sink, Delayer: buildDelayer(p)}

	var writerErr error
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		logrus.WithField("component", "pkt-writer").Trace("writer starting")
		writerErr = writer.Run(rx, stats)
	}()

	reader := &replay.Reader{Method: p.Method, LoopFile: p.LoopFile, Limit: p.Count}
	var readerErr error
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		logrus.WithField("component", "pcap-reader").Trace("reader starting")
		readerErr = reader.Run(tx, stop)
	}()

	<-readerDone
	<-writerDone

	ret := 0
	if readerErr != nil {
		// A reader error while stop is set typically just reflects a
		// channel the writer already tore down; discard it (§5, §7).
		if !stop.IsSet() {
			logrus.WithField("component", "reader").WithError(readerErr).Error("error while reading packets")
			ret = -1
		} else {
			logrus.WithField("component", "reader").WithError(readerErr).Trace("reader error masked by stop")
		}
	}

	if writerErr != nil {
		logrus.WithField("component", "pkt-writer").WithError(writerErr).Error("error while writing packets")
		ret = -1
	} else {
		fmt.Printf("Write complete: %s\n", stats.Summary())
	}

	stats.CloseReports()
	<-printerDone

	return ret
}
