package main

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

// client is a thin HKCP TCP line-protocol client: dial, write a
// command line, and read lines back until a "." terminator or EOF.
type client struct {
	conn net.Conn
	r    *bufio.Scanner
}

func dial(addr string, timeout time.Duration) (*client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &client{conn: conn, r: bufio.NewScanner(conn)}, nil
}

func (c *client) Close() error {
	return c.conn.Close()
}

// Send writes a command line and collects the reply lines up to (and
// excluding) the terminating "." line, or up to EOF. A command whose
// reply has no "." terminator (like "set" or "echo") makes Send read
// until the connection closes.
func (c *client) Send(line string) ([]string, error) {
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	var lines []string
	for c.r.Scan() {
		text := c.r.Text()
		if text == "." {
			break
		}
		lines = append(lines, text)
	}
	if err := c.r.Err(); err != nil {
		return lines, fmt.Errorf("read reply: %w", err)
	}
	return lines, nil
}

// Watch sends "watch 1" and then streams "!name=value" push lines to
// fn until the connection closes or ctx-like stop returns true.
func (c *client) Watch(fn func(name, value string), stop func() bool) error {
	if _, err := fmt.Fprintf(c.conn, "watch 1\n"); err != nil {
		return fmt.Errorf("write watch: %w", err)
	}
	for c.r.Scan() {
		if stop != nil && stop() {
			return nil
		}
		text := c.r.Text()
		if text == "." || text == "" {
			continue
		}
		if !strings.HasPrefix(text, "!") {
			continue
		}
		name, value, ok := strings.Cut(text[1:], "=")
		if !ok {
			continue
		}
		fn(name, value)
	}
	return c.r.Err()
}
