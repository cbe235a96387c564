// Package driver is the single-goroutine event loop that owns a
// paxos.Core and is the only caller of its five entry points, the
// arrangement spec §5 requires since Core itself holds no lock. Its
// Start/Stop/handleMessages/routeMessage shape is adapted from the
// teacher's internal/node/node.go, narrowed to the proposer-only role:
// there is no local acceptor or learner to route into, only the wire
// frames an external acceptor cluster sends back.
package driver

import (
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/quorumlog/proposer/internal/paxos"
	"github.com/quorumlog/proposer/internal/transport"
	"github.com/quorumlog/proposer/internal/wire"
)

// Driver wires a paxos.Core to a transport.Transport and runs the loop
// that keeps them in sync: outbound PrepareReq/AcceptReq get broadcast
// to every acceptor peer, inbound PrepareAck/AcceptAck/Submit frames get
// decoded and handed to Core.
type Driver struct {
	core      *paxos.Core
	transport transport.Transport
	logger    log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	tickInterval time.Duration
}

// New constructs a Driver. tickInterval controls how often the loop
// calls Accept() even absent new acks, so the pipeline keeps draining
// newly-queued values even when no acceptor traffic is arriving.
func New(core *paxos.Core, t transport.Transport, logger log.Logger, tickInterval time.Duration) *Driver {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if tickInterval <= 0 {
		tickInterval = 20 * time.Millisecond
	}
	return &Driver{
		core:         core,
		transport:    t,
		logger:       log.With(logger, "component", "driver"),
		tickInterval: tickInterval,
	}
}

// Start runs the event loop in a background goroutine and returns
// immediately, mirroring the teacher's Node.Start.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.wg.Add(1)
	go d.run()
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
func (d *Driver) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()
	d.wg.Wait()
	return nil
}

// Submit enqueues a client value for proposal (spec §4.3.1), the
// driver's only entry point safe to call from outside its own
// goroutine: it merely forwards to Core.Propose, which appends to a
// queue rather than touching the instance table.
func (d *Driver) Submit(value []byte) error {
	return d.core.Propose(value)
}

func (d *Driver) run() {
	defer d.wg.Done()

	if reqs, err := d.core.PreexecFill(preexecWindow(d.core)); err != nil {
		level.Error(d.logger).Log("msg", "fatal error priming pipeline", "err", err)
		return
	} else {
		d.broadcastPrepares(reqs)
	}

	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case frame, ok := <-d.transport.Recv():
			if !ok {
				return
			}
			d.routeFrame(frame)
			if d.drainAccepts() {
				return
			}
		case <-ticker.C:
			if d.drainAccepts() {
				return
			}
		}
	}
}

func (d *Driver) routeFrame(frame transport.Frame) {
	msg, err := wire.Decode(frame.Type, frame.Payload)
	if err != nil {
		level.Warn(d.logger).Log("msg", "dropping unparseable frame", "peer", frame.PeerID, "type", frame.Type, "err", err)
		return
	}
	switch m := msg.(type) {
	case wire.Submit:
		if err := d.core.Propose(paxos.Value(m.Value)); err != nil {
			level.Warn(d.logger).Log("msg", "rejected submitted value", "peer", frame.PeerID, "err", err)
		}
	case wire.PrepareAck:
		d.core.ReceivePrepareAck(paxos.PrepareAck{
			AcceptorID:  m.AcceptorID,
			IID:         paxos.InstanceID(m.IID),
			Ballot:      paxos.Ballot(m.Ballot),
			ValueBallot: paxos.Ballot(m.ValueBallot),
			Value:       m.Value,
		})
	case wire.AcceptAck:
		d.core.ReceiveAcceptAck(paxos.AcceptAck{
			AcceptorID: m.AcceptorID,
			IID:        paxos.InstanceID(m.IID),
			Ballot:     paxos.Ballot(m.Ballot),
			Value:      m.Value,
		})
	default:
		level.Warn(d.logger).Log("msg", "unexpected message on proposer driver", "peer", frame.PeerID, "type", frame.Type)
	}
}

// drainAccepts calls Core.Accept() until it stops opening new Phase 2
// slots, broadcasting every AcceptReq/PrepareReq pair it produces. It
// reports true when the loop must stop: Core.Accept() bundles the
// Phase-2 accept with an immediate pipeline-refill Prepare() call and
// can return accepted == true alongside a non-nil err (the refill, not
// the accept, failed) — the accept already mutated Core's state and
// must still be broadcast before the fatal error (spec §7:
// window-exceeded is a configuration error, not retryable) stops the
// driver.
func (d *Driver) drainAccepts() (fatal bool) {
	for {
		accept, prepare, accepted, prepared, err := d.core.Accept()
		if accepted {
			d.broadcastAccept(accept)
			if prepared {
				d.broadcastPrepare(prepare)
			}
		}
		if err != nil {
			level.Error(d.logger).Log("msg", "fatal error extending pipeline, stopping driver", "err", err)
			return true
		}
		if !accepted {
			return false
		}
	}
}

func (d *Driver) broadcastPrepares(reqs []paxos.PrepareReq) {
	for _, r := range reqs {
		d.broadcastPrepare(r)
	}
}

func (d *Driver) broadcastPrepare(r paxos.PrepareReq) {
	t, payload, err := wire.Encode(wire.PrepareReq{IID: uint64(r.IID), Ballot: uint64(r.Ballot)})
	if err != nil {
		level.Error(d.logger).Log("msg", "failed to encode prepare_req", "err", err)
		return
	}
	d.transport.Broadcast(t, payload)
}

func (d *Driver) broadcastAccept(r paxos.AcceptReq) {
	t, payload, err := wire.Encode(wire.AcceptReq{IID: uint64(r.IID), Ballot: uint64(r.Ballot), Value: r.Value})
	if err != nil {
		level.Error(d.logger).Log("msg", "failed to encode accept_req", "err", err)
		return
	}
	d.transport.Broadcast(t, payload)
}

// preexecWindow recovers the configured pipeline depth from core so
// Start doesn't need a second copy of the limits the caller already
// passed to paxos.NewCore. Exposed via paxos.Core.PreexecWindowSize.
func preexecWindow(core *paxos.Core) uint32 {
	return core.PreexecWindowSize()
}
