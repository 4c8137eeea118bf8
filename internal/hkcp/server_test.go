package hkcp

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"hakit/internal/endpoint"
	"hakit/internal/sched"
)

func TestServerTCPSetGetRoundTrip(t *testing.T) {
	reg := endpoint.NewRegistry(0)
	_, _ = reg.RegisterSink("light", false, "switch", "", nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln.Close()

	loop := sched.NewLoop()
	srv := NewServer(reg, ln.Addr().String(), loop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = loop.Run(ctx) }()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", srv.Addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("set light=on\n")); err != nil {
		t.Fatalf("write set: %v", err)
	}
	if _, err := conn.Write([]byte("get light\n")); err != nil {
		t.Fatalf("write get: %v", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !contains(line, "sink") || !contains(line, "on") {
		t.Fatalf("get response = %q, want a sink dump showing value on", line)
	}

	dot, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read terminator: %v", err)
	}
	if dot != ".\n" {
		t.Fatalf("terminator line = %q, want \".\\n\"", dot)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
