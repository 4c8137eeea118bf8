package hkcp

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"hakit/internal/endpoint"
	"hakit/internal/logging"
	"hakit/internal/sched"
)

// DefaultPort is HKCP's well-known TCP/UDP port.
const DefaultPort = 5678

// AdvertiseDelay is the deferred/re-armed broadcast interval,
// matching ADVERTISE_DELAY.
const AdvertiseDelay = 1000 * time.Millisecond

// Server owns the TCP command listener and the UDP advertiser for one
// HKCP node.
type Server struct {
	Endpoints *endpoint.Registry
	Nodes     *NodeManager
	T0        time.Time
	Addr      string // e.g. ":5678"

	// Loop is where every command dispatch and UDP-triggered node
	// attach runs, so the endpoint registry and graph pads reached
	// through it are only ever touched from one goroutine, matching
	// the single-threaded domain-state contract.
	Loop *sched.Loop

	udpConnMu sync.Mutex
	udpConn   *net.UDPConn

	localAddrsMu sync.Mutex
	localAddrs   map[string]bool

	watchersMu sync.Mutex
	watchers   map[string]*watchConn
}

// NewServer constructs a server bound to addr (host:port, typically
// ":5678"), dispatching every command through loop.
func NewServer(endpoints *endpoint.Registry, addr string, loop *sched.Loop) *Server {
	s := &Server{
		Endpoints: endpoints,
		Nodes:     NewNodeManager(),
		T0:        time.Now(),
		Addr:      addr,
		Loop:      loop,
		watchers:  make(map[string]*watchConn),
	}
	endpoints.NotifySource = s.notifySource
	return s
}

// watchConn is a TCP connection that has toggled watch mode on,
// serializing writes between command replies and pushed
// "!name=value\n" lines.
type watchConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (w *watchConn) writeLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.conn.Write([]byte(line))
	return err
}

// notifySource pushes a public source's new value to every Node
// attached to it and every connection with watch mode on, matching
// §4.4's "builds a single set name=value\n line and writes it to every
// attached Node's TCP socket" and the watch verb's ongoing broadcast.
func (s *Server) notifySource(src *endpoint.Source) {
	s.Nodes.ForEach(func(n *Node) {
		for _, name := range n.AttachedSourceNames() {
			if name == src.Name {
				_ = n.Send("set " + src.Name + "=" + src.Value)
				break
			}
		}
	})

	watchLine := NotifyWatch(src.Name, src.Value)
	s.watchersMu.Lock()
	watchers := make([]*watchConn, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.watchersMu.Unlock()
	for _, w := range watchers {
		_ = w.writeLine(watchLine)
	}
}

// ListenAndServe runs the TCP command listener and the UDP advertiser
// until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.loadLocalAddrs()

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go s.serveUDP(ctx)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	connID := uuid.NewString()
	log := logging.Component("hkcp").With("conn", connID, "remote", conn.RemoteAddr().String())
	log.Info("connection opened")
	defer log.Info("connection closed")

	wc := &watchConn{conn: conn}
	defer func() {
		s.watchersMu.Lock()
		delete(s.watchers, connID)
		s.watchersMu.Unlock()
	}()

	cmd := &CommandContext{Endpoints: s.Endpoints, Nodes: s.Nodes, T0: s.T0}
	cmd.OnWatchToggle = func(enabled bool) {
		s.watchersMu.Lock()
		if enabled {
			s.watchers[connID] = wc
		} else {
			delete(s.watchers, connID)
		}
		s.watchersMu.Unlock()
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		var out string
		s.Loop.Call(func() { out = cmd.Dispatch(line) })
		if out != "" {
			if err := wc.writeLine(out); err != nil {
				return
			}
		}
	}
}

func (s *Server) loadLocalAddrs() {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		slog.Warn("hkcp: list interface addrs", "err", err)
		return
	}
	local := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			local[ipNet.IP.String()] = true
		}
	}
	s.localAddrsMu.Lock()
	s.localAddrs = local
	s.localAddrsMu.Unlock()
}

func (s *Server) isLocalAddr(ip net.IP) bool {
	s.localAddrsMu.Lock()
	defer s.localAddrsMu.Unlock()
	return s.localAddrs[ip.String()]
}

func (s *Server) serveUDP(ctx context.Context) {
	addr, err := net.ResolveUDPAddr("udp", s.Addr)
	if err != nil {
		slog.Error("hkcp: resolve udp addr", "err", err)
		return
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		slog.Error("hkcp: listen udp", "err", err)
		return
	}
	s.udpConnMu.Lock()
	s.udpConn = conn
	s.udpConnMu.Unlock()
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go s.advertiseLoop(ctx, conn)

	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		s.handleUDP(ctx, buf[:n], from)
	}
}

func (s *Server) advertiseLoop(ctx context.Context, conn *net.UDPConn) {
	ticker := time.NewTicker(AdvertiseDelay)
	defer ticker.Stop()

	broadcast := &net.UDPAddr{IP: net.IPv4bcast, Port: DefaultPort}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var names []string
			s.Loop.Call(func() {
				s.Endpoints.ForEachPublicSink(func(sk *endpoint.Sink) { names = append(names, sk.Name) })
			})
			for _, pkt := range EncodePackets(MsgSink, ProtoHKCP, names) {
				_, _ = conn.WriteToUDP(pkt, broadcast)
			}
		}
	}
}

// handleUDP processes one inbound advertising datagram: a peer
// advertising MsgSink names that match one of our local public
// sources triggers a TCP attach to that peer, matching
// hkcp_udp_event_sink's derive-node-from-source-IP behavior. Datagrams
// that originated from one of our own interface addresses (our own
// broadcast advertisement looping back) are dropped, per §9.
func (s *Server) handleUDP(ctx context.Context, data []byte, from *net.UDPAddr) {
	if s.isLocalAddr(from.IP) {
		return
	}

	msgType, _, names, err := DecodePacket(data)
	if err != nil {
		slog.Warn("hkcp: bad advertising packet", "from", from, "err", err)
		return
	}

	switch msgType {
	case MsgSink:
		s.Loop.Call(func() {
			for _, name := range names {
				if src := s.Endpoints.RetrieveSource(name); src != nil && src.IsPublic() {
					nodeAddr := net.JoinHostPort(from.IP.String(), strconv.Itoa(DefaultPort))
					node := s.Nodes.Ensure(ctx, from.IP.String(), nodeAddr, s.onNodeLine)
					node.AttachSource(name)
				}
			}
		})
	case MsgRequest:
		var names []string
		s.Loop.Call(func() {
			s.Endpoints.ForEachPublicSink(func(sk *endpoint.Sink) { names = append(names, sk.Name) })
		})
		s.udpConnMu.Lock()
		conn := s.udpConn
		s.udpConnMu.Unlock()
		if conn != nil {
			for _, pkt := range EncodePackets(MsgReply, ProtoHKCP, names) {
				_, _ = conn.WriteToUDP(pkt, from)
			}
		}
	}
}

// TriggerAdvertise sends one immediate sink-name broadcast, used to
// re-arm discovery promptly when the interface set changes instead of
// waiting for the next periodic advertiseLoop tick.
func (s *Server) TriggerAdvertise() {
	var names []string
	s.Loop.Call(func() {
		s.Endpoints.ForEachPublicSink(func(sk *endpoint.Sink) { names = append(names, sk.Name) })
	})

	s.udpConnMu.Lock()
	conn := s.udpConn
	s.udpConnMu.Unlock()
	if conn == nil {
		return
	}

	broadcast := &net.UDPAddr{IP: net.IPv4bcast, Port: DefaultPort}
	for _, pkt := range EncodePackets(MsgSink, ProtoHKCP, names) {
		_, _ = conn.WriteToUDP(pkt, broadcast)
	}
}

func (s *Server) onNodeLine(n *Node, line string) {
	cmd := &CommandContext{Endpoints: s.Endpoints, Nodes: s.Nodes, T0: s.T0}
	var out string
	s.Loop.Call(func() { out = cmd.Dispatch(line) })
	if out != "" {
		_ = n.Send(out)
	}
}

