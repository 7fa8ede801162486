// PTP transparent relay service

package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/libp2p/go-reuseport"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"example.com/ptp-relay/benchmark"

	"example.com/ptp-relay/core/adjust"
	"example.com/ptp-relay/core/relay"
	"example.com/ptp-relay/core/timebase"

	"example.com/ptp-relay/base/zaplog"

	"example.com/ptp-relay/driver/clock"

	"example.com/ptp-relay/net/ptp"
)

const relayNumGoroutine = 4

type svcConfig struct {
	LocalAddr         string `toml:"local_address,omitempty"`
	RemoteEventAddr   string `toml:"remote_event_address,omitempty"`
	RemoteGeneralAddr string `toml:"remote_general_address,omitempty"`
	Interface         string `toml:"interface,omitempty"`
	DSCP              uint8  `toml:"dscp,omitempty"`
	TwoStepPorts      []int  `toml:"two_step_ports,omitempty"`
	FrequencyOffset   int64  `toml:"frequency_offset,omitempty"`
	HasFrequency      bool   `toml:"has_frequency_offset,omitempty"`
}

var (
	log *zap.Logger
)

func initLogger(verbose bool) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		// See https://github.com/scionproto/scion/blob/master/pkg/log/log.go
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var err error
	log, err = c.Build()
	if err != nil {
		panic(err)
	}
	zaplog.SetLogger(log)
}

func runMonitor(log *zap.Logger) {
	http.Handle("/metrics", promhttp.Handler())
	err := http.ListenAndServe("127.0.0.1:8080", nil)
	log.Fatal("failed to serve metrics", zap.Error(err))
}

func loadConfig(configFile string) svcConfig {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	var cfg svcConfig
	err = toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		log.Fatal("failed to decode configuration", zap.Error(err))
	}
	return cfg
}

func localAddress(cfg svcConfig) *net.UDPAddr {
	if cfg.LocalAddr == "" {
		log.Fatal("local_address not specified in config")
	}
	localAddr, err := net.ResolveUDPAddr("udp", cfg.LocalAddr)
	if err != nil {
		log.Fatal("failed to parse local address", zap.Error(err))
	}
	return localAddr
}

func remoteAddress(cfg svcConfig) (event, general *net.UDPAddr) {
	if cfg.RemoteEventAddr == "" {
		log.Fatal("remote_event_address not specified in config")
	}
	event, err := net.ResolveUDPAddr("udp", cfg.RemoteEventAddr)
	if err != nil {
		log.Fatal("failed to parse remote event address", zap.Error(err))
	}
	if cfg.RemoteGeneralAddr != "" {
		general, err = net.ResolveUDPAddr("udp", cfg.RemoteGeneralAddr)
		if err != nil {
			log.Fatal("failed to parse remote general address", zap.Error(err))
		}
	} else {
		general = &net.UDPAddr{
			IP:   event.IP,
			Port: ptp.GeneralPortIP,
			Zone: event.Zone,
		}
	}
	return event, general
}

func twoStepMask(cfg svcConfig) adjust.PortMask {
	var mask adjust.PortMask
	for _, p := range cfg.TwoStepPorts {
		if p < 0 || p > 31 {
			log.Fatal("invalid two-step port in config", zap.Int("port", p))
		}
		mask |= 1 << uint(p)
	}
	return mask
}

func runRelay(configFile string) {
	ctx := context.Background()

	cfg := loadConfig(configFile)
	localAddr := localAddress(cfg)
	eventRemote, generalRemote := remoteAddress(cfg)

	lclk := &clock.SystemClock{Log: slog.Default()}
	timebase.RegisterClock(lclk)

	rcfg := relay.Config{
		Iface:           cfg.Interface,
		DSCP:            cfg.DSCP,
		TwoStepMask:     twoStepMask(cfg),
		FreqOffset:      ptp.TimeInterval(cfg.FrequencyOffset),
		FreqOffsetValid: cfg.HasFrequency,
		EventRemote:     eventRemote,
		GeneralRemote:   generalRemote,
	}

	if relayNumGoroutine == 1 {
		conn, err := net.ListenUDP("udp", localAddr)
		if err != nil {
			log.Fatal("failed to listen for packets", zap.Error(err))
		}
		relay.StartRelay(ctx, slog.Default(), rcfg, conn)
	} else {
		for range relayNumGoroutine {
			conn, err := reuseport.ListenPacket("udp",
				net.JoinHostPort(localAddr.IP.String(), strconv.Itoa(localAddr.Port)))
			if err != nil {
				log.Fatal("failed to listen for packets", zap.Error(err))
			}
			relay.StartRelay(ctx, slog.Default(), rcfg, conn.(*net.UDPConn))
		}
	}

	runMonitor(log)
}

// runTool adjusts a single PTP message supplied as hex and prints the
// result, plus the generated follow-up when one applies.
func runTool(frameHex string, correction, frequency int64, hasFrequency bool, mask uint) {
	frame, err := hex.DecodeString(frameHex)
	if err != nil {
		log.Fatal("failed to decode frame", zap.Error(err))
	}
	if len(frame) < ptp.HeaderLen {
		log.Fatal("frame too short", zap.Int("len", len(frame)))
	}

	meta := adjust.Metadata{
		MsgPos:      0,
		TlvPos:      adjust.PosNone,
		RefTime:     adjust.Interval{Value: ptp.TimeInterval(correction), Valid: true},
		LocalTime:   adjust.Interval{Valid: true},
		TwoStepMask: adjust.PortMask(mask),
	}
	if hasFrequency {
		meta.FreqOffset = adjust.Interval{Value: ptp.TimeInterval(frequency), Valid: true}
	}

	out, rec, adjErr := adjust.AdjustFrame(meta, frame)
	if adjErr {
		log.Warn("adjustment incomplete, field zeroed")
	}
	fmt.Printf("%s\n", hex.EncodeToString(out))
	if rec != nil {
		fu := adjust.CloneFrame(out, meta, rec)
		fmt.Printf("%s\n", hex.EncodeToString(fu))
	}
}

func exitWithUsage() {
	fmt.Println("<usage>")
	os.Exit(1)
}

func main() {
	var (
		verbose      bool
		configFile   string
		frameHex     string
		correction   int64
		frequency    int64
		hasFrequency bool
		mask         uint
		chunkLen     int
	)

	relayFlags := flag.NewFlagSet("relay", flag.ExitOnError)
	toolFlags := flag.NewFlagSet("tool", flag.ExitOnError)
	benchmarkFlags := flag.NewFlagSet("benchmark", flag.ExitOnError)

	relayFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	relayFlags.StringVar(&configFile, "config", "", "Config file")

	toolFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	toolFlags.StringVar(&frameHex, "frame", "", "PTP message, hex encoded")
	toolFlags.Int64Var(&correction, "correction", 0, "Correction to add, in subns")
	toolFlags.Int64Var(&frequency, "frequency", 0, "Frequency offset, in subns per second")
	toolFlags.BoolVar(&hasFrequency, "has-frequency", false, "Write the frequency offset")
	toolFlags.UintVar(&mask, "two-step-mask", 0, "Two-step egress port mask")

	benchmarkFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	benchmarkFlags.IntVar(&chunkLen, "chunklen", 8, "Chunk length in bytes")

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	switch os.Args[1] {
	case relayFlags.Name():
		err := relayFlags.Parse(os.Args[2:])
		if err != nil || relayFlags.NArg() != 0 {
			exitWithUsage()
		}
		if configFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runRelay(configFile)
	case toolFlags.Name():
		err := toolFlags.Parse(os.Args[2:])
		if err != nil || toolFlags.NArg() != 0 {
			exitWithUsage()
		}
		if frameHex == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runTool(frameHex, correction, frequency, hasFrequency, mask)
	case benchmarkFlags.Name():
		err := benchmarkFlags.Parse(os.Args[2:])
		if err != nil || benchmarkFlags.NArg() != 0 {
			exitWithUsage()
		}
		if chunkLen < 1 {
			exitWithUsage()
		}
		initLogger(verbose)
		benchmark.RunPipelineBenchmark(chunkLen)
	case "x":
		runX()
	default:
		exitWithUsage()
	}
}
