// Package relay forwards PTP event traffic between two UDP endpoints,
// rewriting each message's correction metadata in transit the way a
// transparent clock would.
package relay

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/ptp-relay/base/metrics"

	"example.com/ptp-relay/core/adjust"
	"example.com/ptp-relay/core/classify"
	"example.com/ptp-relay/core/timebase"

	"example.com/ptp-relay/net/ptp"
	"example.com/ptp-relay/net/udp"
)

const bufLen = 2048

type Config struct {
	// Iface requests hardware RX timestamps on the named interface;
	// empty means kernel software timestamps.
	Iface string
	// DSCP for forwarded packets, range [0, 63].
	DSCP uint8
	// TwoStepMask selects the egress ports requiring two-step
	// conversion; the relay models its single forwarding target as
	// port 0.
	TwoStepMask adjust.PortMask
	// FreqOffset is the frequency correction written into Doppler
	// TLVs, in subns per second.
	FreqOffset      ptp.TimeInterval
	FreqOffsetValid bool
	// EventRemote and GeneralRemote are the forwarding targets for
	// adjusted event messages and generated Follow_Up companions.
	EventRemote   *net.UDPAddr
	GeneralRemote *net.UDPAddr
}

type relayMetrics struct {
	pktsReceived  prometheus.Counter
	pktsForwarded prometheus.Counter
	pktsDropped   prometheus.Counter
}

var (
	mtrcsOnce sync.Once
	mtrcs     *relayMetrics
)

func relayMtrcs() *relayMetrics {
	mtrcsOnce.Do(func() {
		mtrcs = newRelayMetrics()
	})
	return mtrcs
}

func newRelayMetrics() *relayMetrics {
	return &relayMetrics{
		pktsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.RelayPktsReceivedN,
			Help: metrics.RelayPktsReceivedH,
		}),
		pktsForwarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.RelayPktsForwardedN,
			Help: metrics.RelayPktsForwardedH,
		}),
		pktsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.RelayPktsDroppedN,
			Help: metrics.RelayPktsDroppedH,
		}),
	}
}

// runRelay receives PTP messages on conn, adjusts them, and forwards
// them to the configured remote. Residence time is measured from the
// kernel RX timestamp to the moment of adjustment, relative to a
// per-run epoch so the subns arithmetic cannot overflow.
func runRelay(ctx context.Context, log *slog.Logger, mtrcs *relayMetrics,
	cfg Config, conn *net.UDPConn) {
	defer conn.Close()
	err := udp.EnableTimestamping(conn, cfg.Iface)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "failed to enable timestamping",
			slog.Any("error", err))
		err = udp.EnableRxTimestamps(conn)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelError, "failed to enable rx timestamps",
				slog.Any("error", err))
		}
	}
	err = udp.SetDSCP(conn, cfg.DSCP)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelInfo, "failed to set DSCP",
			slog.Any("error", err))
	}

	epoch := timebase.Now()
	buf := make([]byte, bufLen)
	oob := make([]byte, udp.TimestampLen())
	for {
		buf = buf[:cap(buf)]
		oob = oob[:cap(oob)]
		n, oobn, flags, srcAddr, err := conn.ReadMsgUDPAddrPort(buf, oob)
		if err != nil {
			log.LogAttrs(ctx, slog.LevelError, "failed to read packet",
				slog.Any("error", err))
			continue
		}
		if flags != 0 {
			log.LogAttrs(ctx, slog.LevelError, "failed to read packet",
				slog.Int("flags", flags))
			continue
		}
		oob = oob[:oobn]
		rxt, err := udp.TimestampFromOOBData(oob)
		if err != nil {
			oob = oob[:0]
			rxt = timebase.Now()
			log.LogAttrs(ctx, slog.LevelError, "failed to read packet rx timestamp",
				slog.Any("error", err))
		}
		buf = buf[:n]
		mtrcs.pktsReceived.Inc()

		meta := classify.ClassifyMessage(buf)
		meta.TwoStepMask = cfg.TwoStepMask
		meta.RefTime = adjust.Interval{
			Value: -ptp.IntervalFromDuration(rxt.Sub(epoch)),
			Valid: true,
		}
		meta.LocalTime = adjust.Interval{
			Value: ptp.IntervalFromDuration(timebase.Now().Sub(epoch)),
			Valid: true,
		}
		meta.FreqOffset = adjust.Interval{
			Value: cfg.FreqOffset,
			Valid: cfg.FreqOffsetValid,
		}

		out, rec, adjErr := adjust.AdjustFrame(meta, buf)
		if adjErr {
			log.LogAttrs(ctx, slog.LevelInfo, "adjustment degraded",
				slog.String("from", srcAddr.String()))
		}

		_, err = conn.WriteToUDP(out, cfg.EventRemote)
		if err != nil {
			mtrcs.pktsDropped.Inc()
			log.LogAttrs(ctx, slog.LevelError, "failed to forward packet",
				slog.Any("error", err))
			continue
		}
		mtrcs.pktsForwarded.Inc()

		if rec != nil {
			followUp := adjust.CloneFrame(out, meta, rec)
			_, err = conn.WriteToUDP(followUp, cfg.GeneralRemote)
			if err != nil {
				mtrcs.pktsDropped.Inc()
				log.LogAttrs(ctx, slog.LevelError, "failed to forward follow-up",
					slog.Any("error", err))
				continue
			}
			mtrcs.pktsForwarded.Inc()
			log.LogAttrs(ctx, slog.LevelDebug, "forwarded follow-up",
				slog.Uint64("msgType", uint64(rec.MsgType)),
				slog.Time("rx", rxt))
		}
	}
}

// StartRelay starts the relay on its own goroutine.
func StartRelay(ctx context.Context, log *slog.Logger,
	cfg Config, conn *net.UDPConn) {
	log.LogAttrs(ctx, slog.LevelInfo, "relay starting",
		slog.String("iface", cfg.Iface),
		slog.Uint64("twoStepMask", uint64(cfg.TwoStepMask)))
	go runRelay(ctx, log, relayMtrcs(), cfg, conn)
}
