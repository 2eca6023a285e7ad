package telemetry

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/fcw/internal/monitoring"
)

const (
	publishQueueSize = 100
	clientQueueSize  = 10
	statsInterval    = 5 * time.Second
	dropLogEvery     = 100
)

// Config holds publisher settings.
type Config struct {
	ListenAddr string
	MaxClients int
}

// DefaultConfig returns the stock publisher configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr: "localhost:50061",
		MaxClients: 5,
	}
}

// Stats reports publisher counters.
type Stats struct {
	Published uint64
	Dropped   uint64
	Clients   int32
}

// Publisher runs the telemetry gRPC server and fans snapshots out to every
// connected stream. Publish never blocks the decision loop.
type Publisher struct {
	config   Config
	server   *grpc.Server
	listener net.Listener

	snapshots chan *structpb.Struct
	clients   map[string]chan *structpb.Struct
	clientsMu sync.RWMutex
	nextID    atomic.Uint64

	published     atomic.Uint64
	dropped       atomic.Uint64
	clientCount   atomic.Int32
	lastStatsTime time.Time
	lastPublished uint64
	statsMu       sync.Mutex

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPublisher creates a stopped publisher.
func NewPublisher(cfg Config) *Publisher {
	return &Publisher{
		config:    cfg,
		snapshots: make(chan *structpb.Struct, publishQueueSize),
		clients:   make(map[string]chan *structpb.Struct),
		stopCh:    make(chan struct{}),
	}
}

// Start listens on the configured address and serves.
func (p *Publisher) Start() error {
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.StartOnListener(lis)
}

// StartOnListener serves on an existing listener.
func (p *Publisher) StartOnListener(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis
	p.server = grpc.NewServer()
	RegisterTelemetryServer(p.server, p)

	p.wg.Add(2)
	go p.broadcastLoop()
	go func() {
		defer p.wg.Done()
		monitoring.Logf("[Telemetry] gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			monitoring.Logf("[Telemetry] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop ends every stream and shuts the server down.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	p.server.GracefulStop()
	p.wg.Wait()
	monitoring.Logf("[Telemetry] gRPC server stopped")
}

// Publish queues a snapshot for every client. The snapshot is dropped when
// the queue is full or the publisher is stopped.
func (p *Publisher) Publish(s Snapshot) error {
	if !p.running.Load() {
		return nil
	}
	msg, err := s.ToStruct()
	if err != nil {
		return err
	}
	select {
	case p.snapshots <- msg:
		p.logPeriodicStats(p.published.Add(1))
	default:
		if dropped := p.dropped.Add(1); shouldLogDrop(dropped) {
			monitoring.Logf("[Telemetry] DROPPED snapshot %d (total dropped: %d), queue full", s.Seq, dropped)
		}
	}
	return nil
}

// shouldLogDrop reports whether the nth drop is logged: the first, then every
// dropLogEvery.
func shouldLogDrop(n uint64) bool {
	return n == 1 || n%dropLogEvery == 0
}

func (p *Publisher) logPeriodicStats(published uint64) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	now := time.Now()
	if p.lastStatsTime.IsZero() {
		p.lastStatsTime, p.lastPublished = now, published
		return
	}
	elapsed := now.Sub(p.lastStatsTime)
	if elapsed < statsInterval {
		return
	}
	rate := float64(published-p.lastPublished) / elapsed.Seconds()
	monitoring.Logf("[Telemetry] Stats: rate=%.1f/s dropped=%d clients=%d queue=%d/%d",
		rate, p.dropped.Load(), p.clientCount.Load(), len(p.snapshots), publishQueueSize)
	p.lastStatsTime, p.lastPublished = now, published
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case msg := <-p.snapshots:
			p.clientsMu.RLock()
			for _, ch := range p.clients {
				select {
				case ch <- msg:
				default:
					p.dropped.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

// StreamSnapshots implements TelemetryServer.
func (p *Publisher) StreamSnapshots(_ *emptypb.Empty, stream grpc.ServerStream) error {
	id, ch, err := p.addClient()
	if err != nil {
		return err
	}
	defer p.removeClient(id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case msg := <-ch:
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func (p *Publisher) addClient() (string, chan *structpb.Struct, error) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if p.config.MaxClients > 0 && len(p.clients) >= p.config.MaxClients {
		return "", nil, status.Errorf(codes.ResourceExhausted, "telemetry client limit %d reached", p.config.MaxClients)
	}
	id := fmt.Sprintf("client-%d", p.nextID.Add(1))
	ch := make(chan *structpb.Struct, clientQueueSize)
	p.clients[id] = ch
	n := p.clientCount.Add(1)
	monitoring.Logf("[Telemetry] Client connected: %s (total: %d)", id, n)
	return id, ch, nil
}

func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if _, ok := p.clients[id]; !ok {
		return
	}
	delete(p.clients, id)
	n := p.clientCount.Add(-1)
	monitoring.Logf("[Telemetry] Client disconnected: %s (remaining: %d)", id, n)
}

// Stats returns the current counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Clients:   p.clientCount.Load(),
	}
}

// Addr returns the listening address, or nil before Start.
func (p *Publisher) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}
