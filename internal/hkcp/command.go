package hkcp

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"hakit/internal/endpoint"
	"hakit/internal/graph"
)

// Version is the build-time protocol/implementation version string
// reported by the "props" command.
var Version = "dev"

// CommandContext holds the per-connection state a command dispatcher
// needs: the shared endpoint registry, the node table, and this
// connection's watch flag (every new connection starts unwatched,
// resolving the spec's "does watch persist across reconnect" open
// question the same way the C implementation does: watch state lives
// on the connection, not the node).
type CommandContext struct {
	Endpoints *endpoint.Registry
	Nodes     *NodeManager
	T0        time.Time
	Watch     bool

	// OnWatchToggle, if set, is invoked whenever the watch verb changes
	// this connection's Watch flag, so the transport layer can
	// register or drop it from the set of connections that receive
	// NotifyWatch pushes.
	OnWatchToggle func(enabled bool)
}

// Dispatch parses and executes one command line, returning the text to
// write back to the connection (already newline-terminated).
func (c *CommandContext) Dispatch(line string) string {
	argv := graph.Tokenize(line)
	if len(argv) == 0 {
		return ""
	}

	var out strings.Builder
	switch argv[0] {
	case "set":
		c.cmdSet(argv, &out)
	case "get":
		c.cmdGet(argv, &out)
	case "nodes":
		c.cmdNodes(&out)
	case "sinks":
		c.cmdSinks(&out)
	case "sources":
		c.cmdSources(&out)
	case "props":
		c.cmdProps(&out)
	case "watch":
		c.cmdWatch(argv, &out)
	case "echo":
		out.WriteString(strings.Join(argv[1:], " "))
		out.WriteString("\n")
	default:
		fmt.Fprintf(&out, ".ERROR: Unknown command: %s\n", argv[0])
	}
	return out.String()
}

func (c *CommandContext) cmdSet(argv []string, out *strings.Builder) {
	for _, arg := range argv[1:] {
		i := strings.IndexByte(arg, '=')
		if i < 0 {
			fmt.Fprintf(out, ".ERROR: Syntax error in command: %s\n", arg)
			continue
		}
		name, value := arg[:i], arg[i+1:]
		sink := c.Endpoints.RetrieveSink(name)
		if sink == nil {
			fmt.Fprintf(out, ".ERROR: Unknown sink: %s\n", name)
			continue
		}
		c.Endpoints.UpdateSink(sink, value)
	}
}

func dumpEndpoint(out *strings.Builder, kind, widget, chart, name, value string) {
	if chart == "" {
		chart = "-"
	}
	fmt.Fprintf(out, "%s %s %s %s %s\n", kind, widget, chart, name, value)
}

func (c *CommandContext) cmdGet(argv []string, out *strings.Builder) {
	if len(argv) > 1 {
		for _, name := range argv[1:] {
			if src := c.Endpoints.RetrieveSource(name); src != nil {
				dumpEndpoint(out, "source", src.Widget, src.Chart, src.Name, src.Value)
			}
		}
		for _, name := range argv[1:] {
			if sink := c.Endpoints.RetrieveSink(name); sink != nil {
				dumpEndpoint(out, "sink", sink.Widget, sink.Chart, sink.Name, sink.Value)
			}
		}
	} else {
		c.Endpoints.ForEachSource(func(s *endpoint.Source) {
			dumpEndpoint(out, "source", s.Widget, s.Chart, s.Name, s.Value)
		})
		c.Endpoints.ForEachSink(func(s *endpoint.Sink) {
			dumpEndpoint(out, "sink", s.Widget, s.Chart, s.Name, s.Value)
		})
	}
	out.WriteString(".\n")
}

func (c *CommandContext) cmdNodes(out *strings.Builder) {
	if c.Nodes != nil {
		c.Nodes.ForEach(func(n *Node) {
			out.WriteString(n.Name)
			for _, src := range n.AttachedSourceNames() {
				out.WriteString(" ")
				out.WriteString(src)
			}
			out.WriteString("\n")
		})
	}
	out.WriteString(".\n")
}

func (c *CommandContext) cmdSources(out *strings.Builder) {
	c.Endpoints.ForEachPublicSource(func(s *endpoint.Source) {
		out.WriteString(s.Name)
		out.WriteString(" \"")
		out.WriteString(s.Value)
		out.WriteString("\"")
		if c.Nodes != nil {
			c.Nodes.ForEach(func(n *Node) {
				for _, attached := range n.AttachedSourceNames() {
					if attached == s.Name {
						out.WriteString(" ")
						out.WriteString(n.Name)
					}
				}
			})
		}
		out.WriteString("\n")
	})
	out.WriteString(".\n")
}

func (c *CommandContext) cmdSinks(out *strings.Builder) {
	c.Endpoints.ForEachPublicSink(func(s *endpoint.Sink) {
		out.WriteString(s.Name)
		out.WriteString(" \"")
		out.WriteString(s.Value)
		out.WriteString("\"\n")
	})
	out.WriteString(".\n")
}

func (c *CommandContext) cmdProps(out *strings.Builder) {
	fmt.Fprintf(out, "VERSION: %s\n", Version)
	fmt.Fprintf(out, "ARCH: %s\n", runtime.GOARCH)
	fmt.Fprintf(out, "T0: %d\n", c.T0.Unix())
	fmt.Fprintf(out, "TRACE_DEPTH: %d\n", c.Endpoints.TraceDepth())
	out.WriteString(".\n")
}

func (c *CommandContext) cmdWatch(argv []string, out *strings.Builder) {
	if len(argv) > 1 {
		if len(argv) != 2 {
			out.WriteString(".ERROR: watch: Syntax error\n")
			return
		}
		switch argv[1] {
		case "0", "off":
			c.Watch = false
		case "1", "on":
			c.Watch = true
		default:
			out.WriteString(".ERROR: watch: Syntax error\n")
			return
		}
		if c.OnWatchToggle != nil {
			c.OnWatchToggle(c.Watch)
		}
	}

	out.WriteString(".\n")
	if c.Watch {
		c.Endpoints.ForEachPublicSource(func(s *endpoint.Source) {
			out.WriteString("!")
			out.WriteString(s.Name)
			out.WriteString("=")
			out.WriteString(s.Value)
			out.WriteString("\n")
		})
	}
}

// NotifyWatch renders the "!name=value\n" push line sent to every
// watching connection when a source updates. Connections track their
// own Watch flag and only forward this when it is set.
func NotifyWatch(name, value string) string {
	return "!" + name + "=" + value + "\n"
}

// DumpTrace renders an endpoint's trace ring within an optional
// [t1,t2] millisecond window (core/comm.c's comm_command_trace). It is
// a helper only: Dispatch has no "trace" verb that calls it.
func DumpTrace(name string, tr *endpoint.Trace, window string) string {
	var from, to int64
	if window != "" {
		parts := strings.SplitN(window, ":", 2)
		from, _ = strconv.ParseInt(parts[0], 10, 64)
		if len(parts) == 2 {
			to, _ = strconv.ParseInt(parts[1], 10, 64)
		}
	}

	var out strings.Builder
	if tr != nil {
		for _, e := range tr.Dump(from, to) {
			fmt.Fprintf(&out, "%s %d %s\n", name, e.Millis, e.Value)
		}
	}
	out.WriteString(".\n")
	return out.String()
}
