// Package config turns command-line flags into validated pipeline
// parameters. It is the CLI/option-parsing glue called out in spec.md §1
// as deliberately out of the core's design scope; this package just
// implements it, in the teacher's urfave/cli idiom.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/sensorfleet/pktreplay/internal/replay"
)

// RateKind selects which Delayer strategy the pipeline builds.
type RateKind int

const (
	// RateDelayed replays packets with their original capture timing.
	RateDelayed RateKind = iota
	// RateFull replays packets with no inter-packet delay.
	RateFull
	// RatePps paces packets at a constant packets-per-second rate.
	RatePps
	// RateBps paces packets at a constant bits-per-second rate.
	RateBps
)

// Unlimited marks a Params.Count with no packet ceiling.
const Unlimited int64 = -1

// Params are the fully validated parameters for one pipeline run.
type Params struct {
	Method   replay.Method
	LoopFile bool

	// Output names the interface to inject packets into; empty selects
	// the null sink.
	Output string

	Rate RateKind
	Pps  uint32
	Bps  uint64

	Hi    uint64
	Lo    uint64
	Count int64

	// StatsInterval is zero when periodic reporting is disabled.
	StatsInterval time.Duration
}

// App builds the urfave/cli application. action is invoked once CLI flags
// have been parsed into Params successfully; a non-nil error it returns
// becomes the process's exit code path.
func App(version string, action func(Params) error) *cli.App {
	app := cli.NewApp()
	app.Name = "pktreplay"
	app.Usage = "replay captured or live traffic at a controlled rate"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "file, f",
			Usage: "pcap capture file to read packets from",
		},
		cli.StringFlag{
			Name:  "interface, i",
			Usage: "live interface to read packets from",
		},
		cli.StringFlag{
			Name:  "output, o",
			Usage: "interface to inject packets into; default is /dev/null",
		},
		cli.BoolFlag{
			Name:  "loop, l",
			Usage: "re-open and replay the input file on exhaustion",
		},
		cli.BoolFlag{
			Name:  "fullspeed, F",
			Usage: "write packets with no inter-packet delay",
		},
		cli.UintFlag{
			Name:  "pps, p",
			Usage: "replay packets at a constant rate of packets per second",
		},
		cli.Float64Flag{
			Name:  "mbps, M",
			Usage: "replay packets at a constant rate of megabits per second",
		},
		cli.Uint64Flag{
			Name:  "low, L",
			Usage: "low watermark for the packet buffer (default hi/2)",
		},
		cli.Uint64Flag{
			Name:  "hi, H",
			Value: 100,
			Usage: "high watermark for the packet buffer",
		},
		cli.Int64Flag{
			Name:  "count, c",
			Value: Unlimited,
			Usage: "stop replaying after this many packets have been read",
		},
		cli.Uint64Flag{
			Name:  "stats, S",
			Usage: "print a statistics summary every this many seconds",
		},
	}
	app.Action = func(c *cli.Context) error {
		params, err := fromContext(c)
		if err != nil {
			return err
		}
		return action(params)
	}
	return app
}

// fromContext validates the parsed flags and assembles Params. It
// enforces exactly-one-input, at-most-one-rate-option, and lo < hi, the
// rules in spec.md §6.
func fromContext(c *cli.Context) (Params, error) {
	file := c.String("file")
	iface := c.String("interface")
	if (file == "") == (iface == "") {
		return Params{}, errors.New("config: exactly one of --file or --interface is required")
	}

	rateFlagsSet := 0
	if c.IsSet("pps") {
		rateFlagsSet++
	}
	if c.IsSet("mbps") {
		rateFlagsSet++
	}
	if c.Bool("fullspeed") {
		rateFlagsSet++
	}
	if rateFlagsSet > 1 {
		return Params{}, errors.New("config: at most one of --pps, --mbps, --fullspeed may be given")
	}

	hi := c.Uint64("hi")
	if hi < 1 {
		return Params{}, errors.New("config: --hi must be at least 1")
	}
	lo := hi / 2
	if c.IsSet("low") {
		lo = c.Uint64("low")
	}
	if lo >= hi {
		return Params{}, errors.New("config: packet buffer low watermark can not be larger than or equal to high")
	}

	method := replay.Method{Kind: replay.InputFile, Value: file}
	if iface != "" {
		method = replay.Method{Kind: replay.InputInterface, Value: iface}
	}

	rate, pps, bps := resolveRate(c, method)

	count := c.Int64("count")
	if count == 0 {
		return Params{}, errors.New("config: --count must be greater than zero")
	}

	var interval time.Duration
	if c.IsSet("stats") {
		secs := c.Uint64("stats")
		if secs == 0 {
			return Params{}, errors.New("config: --stats must be greater than zero seconds")
		}
		interval = time.Duration(secs) * time.Second
	}

	return Params{
		Method:        method,
		LoopFile:      c.Bool("loop"),
		Output:        c.String("output"),
		Rate:          rate,
		Pps:           pps,
		Bps:           bps,
		Hi:            hi,
		Lo:            lo,
		Count:         count,
		StatsInterval: interval,
	}, nil
}

// resolveRate applies the selection rule of spec.md §4.4: Pps > Bps >
// Full > Delayed, with Delayed upgraded to Full when reading from a live
// interface and no explicit rate was requested (replaying live capture
// delays is never what a user watching a live interface wants).
func resolveRate(c *cli.Context, method replay.Method) (RateKind, uint32, uint64) {
	switch {
	case c.IsSet("pps"):
		return RatePps, uint32(c.Uint("pps")), 0
	case c.IsSet("mbps"):
		bps := uint64(c.Float64("mbps") * 1_000_000)
		return RateBps, 0, bps
	case c.Bool("fullspeed"):
		return RateFull, 0, 0
	default:
		if method.Kind == replay.InputInterface {
			return RateFull, 0, 0
		}
		return RateDelayed, 0, 0
	}
}
