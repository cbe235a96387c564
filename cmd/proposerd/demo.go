package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/quorumlog/proposer/internal/driver"
	"github.com/quorumlog/proposer/internal/fakeacceptor"
	"github.com/quorumlog/proposer/internal/paxos"
	"github.com/quorumlog/proposer/internal/transport"
)

func newDemoCmd() *cobra.Command {
	var values int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a single proposer against in-memory fake acceptors and propose some values",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(values)
		},
	}
	cmd.Flags().IntVar(&values, "values", 5, "number of client values to submit")
	return cmd
}

func runDemo(numValues int) error {
	const nAcceptors = 3

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	limits := paxos.Limits{
		ProposerID:        0,
		MaxProposers:      1,
		NOfAcceptors:      nAcceptors,
		Quorum:            nAcceptors/2 + 1,
		ProposerArraySize: 64,
		PreexecWinSize:    4,
		MaxValueSize:      1 << 16,
	}

	var delivered int64
	onChosen := func(iid paxos.InstanceID, value paxos.Value, ours bool) {
		atomic.AddInt64(&delivered, 1)
		level.Info(logger).Log("msg", "chosen", "iid", iid, "value", string(value), "ours", ours)
	}

	core, err := paxos.NewCore(limits, logger, paxos.NewMetrics(prometheus.NewRegistry(), limits.ProposerID), onChosen)
	if err != nil {
		return err
	}

	mem := transport.NewMemory()
	for i := 0; i < nAcceptors; i++ {
		bus := mem.Connect(fmt.Sprintf("acceptor-%d", i))
		acc := fakeacceptor.New(uint32(i))
		go acc.Run(bus)
	}

	d := driver.New(core, mem, logger, 5*time.Millisecond)
	if err := d.Start(); err != nil {
		return err
	}
	defer d.Stop()

	for i := 0; i < numValues; i++ {
		if err := d.Submit([]byte(fmt.Sprintf("value-%d", i))); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&delivered) < int64(numValues) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	level.Info(logger).Log("msg", "demo finished", "delivered", atomic.LoadInt64(&delivered), "requested", numValues)
	return nil
}
