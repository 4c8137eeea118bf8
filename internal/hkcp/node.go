package hkcp

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// MaxConnectAttempts is how many times a Node retries dialing its
// peer before being removed, matching hkcp_node_connect's ">4
// attempts" check (4 retries after the first attempt).
const MaxConnectAttempts = 4

// RetryDelay is the interval between connection attempts after the
// first, matching the 5000ms sys_timeout retry in hkcp_node_connect.
const RetryDelay = 5 * time.Second

// InitialJitter delays the very first connection attempt, matching
// hkcp_node_connect_first's 10ms sys_timeout.
const InitialJitter = 10 * time.Millisecond

// Node is a remote HKCP peer reached by outbound TCP connection.
type Node struct {
	Name string
	Addr string

	mu              sync.Mutex
	conn            net.Conn
	attempts        int
	attachedSources map[string]bool
	removed         bool

	onLine func(n *Node, line string)
}

// NodeManager owns every known peer Node, keyed by address.
type NodeManager struct {
	mu    sync.Mutex
	nodes map[string]*Node
}

// NewNodeManager returns an empty manager.
func NewNodeManager() *NodeManager {
	return &NodeManager{nodes: make(map[string]*Node)}
}

// Get returns the existing node for addr, if any.
func (m *NodeManager) Get(addr string) *Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodes[addr]
}

// Ensure returns the node for addr, creating and connecting it if it
// doesn't exist yet.
func (m *NodeManager) Ensure(ctx context.Context, name, addr string, onLine func(*Node, string)) *Node {
	m.mu.Lock()
	if n, ok := m.nodes[addr]; ok {
		m.mu.Unlock()
		return n
	}
	n := &Node{Name: name, Addr: addr, attachedSources: make(map[string]bool), onLine: onLine}
	m.nodes[addr] = n
	m.mu.Unlock()

	go n.connectFirst(ctx, m)
	return n
}

// Remove drops a node from the manager after it has exhausted its
// connection attempts.
func (m *NodeManager) Remove(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.mu.Lock()
	n.removed = true
	if n.conn != nil {
		n.conn.Close()
	}
	n.mu.Unlock()
	delete(m.nodes, n.Addr)
}

// ForEach visits every known node.
func (m *NodeManager) ForEach(fn func(*Node)) {
	m.mu.Lock()
	nodes := make([]*Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		nodes = append(nodes, n)
	}
	m.mu.Unlock()
	for _, n := range nodes {
		fn(n)
	}
}

func (n *Node) connectFirst(ctx context.Context, m *NodeManager) {
	select {
	case <-time.After(InitialJitter):
	case <-ctx.Done():
		return
	}
	n.connectLoop(ctx, m)
}

func (n *Node) connectLoop(ctx context.Context, m *NodeManager) {
	for {
		n.mu.Lock()
		if n.removed {
			n.mu.Unlock()
			return
		}
		n.attempts++
		attempt := n.attempts
		n.mu.Unlock()

		if attempt > MaxConnectAttempts+1 {
			slog.Warn("hkcp: node exceeded connection attempts, removing", "node", n.Name, "addr", n.Addr)
			m.Remove(n)
			return
		}

		dialer := net.Dialer{}
		conn, err := dialer.DialContext(ctx, "tcp", n.Addr)
		if err != nil {
			slog.Warn("hkcp: node connect failed", "node", n.Name, "addr", n.Addr, "attempt", attempt, "err", err)
			select {
			case <-time.After(RetryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}

		n.mu.Lock()
		n.conn = conn
		n.attempts = 0
		n.mu.Unlock()

		n.readLoop(ctx, conn)

		// readLoop returned: the connection dropped (HUP or error).
		// Reconnect unless the node was explicitly removed.
		n.mu.Lock()
		removed := n.removed
		n.conn = nil
		n.mu.Unlock()
		if removed {
			return
		}
	}
}

func (n *Node) readLoop(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if n.onLine != nil {
			n.onLine(n, scanner.Text())
		}
	}
}

// Send writes a line to the node's connection, if attached.
func (n *Node) Send(line string) error {
	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("hkcp: node %q not connected", n.Name)
	}
	_, err := conn.Write([]byte(line + "\n"))
	return err
}

// AttachSource records that this node subscribes to a source's updates.
func (n *Node) AttachSource(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attachedSources[name] = true
}

// AttachedSourceNames returns the names of sources this node is attached to.
func (n *Node) AttachedSourceNames() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := make([]string, 0, len(n.attachedSources))
	for name := range n.attachedSources {
		names = append(names, name)
	}
	return names
}
