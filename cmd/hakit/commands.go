package main

import (
	"fmt"
	"os"
	"strings"
)

// runGet implements "hakit get [name...]": a dump of sinks/sources,
// following the wire format "kind widget chart name value".
func runGet(c *client, names []string) error {
	cmd := "get"
	if len(names) > 0 {
		cmd = "get " + strings.Join(names, " ")
	}
	lines, err := c.Send(cmd)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		f := splitFields(line, 5)
		for len(f) < 5 {
			f = append(f, "")
		}
		rows = append(rows, f)
	}
	fmt.Println(renderTable([]string{"kind", "widget", "chart", "name", "value"}, rows))
	return nil
}

// runSinks implements "hakit sinks": public sinks only, "name \"value\"".
func runSinks(c *client) error {
	lines, err := c.Send("sinks")
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		f := splitFields(line, 2)
		name := f[0]
		value := ""
		if len(f) > 1 {
			value = unquote(f[1])
		}
		rows = append(rows, []string{name, value})
	}
	fmt.Println(renderTable([]string{"name", "value"}, rows))
	return nil
}

// runSources implements "hakit sources": public sources, followed by
// any node names currently attached as subscribers.
func runSources(c *client) error {
	lines, err := c.Send("sources")
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		value := ""
		nodes := ""
		rest := strings.TrimSpace(strings.TrimPrefix(line, name))
		if strings.HasPrefix(rest, "\"") {
			end := strings.IndexByte(rest[1:], '"')
			if end >= 0 {
				value = rest[1 : end+1]
				nodes = strings.TrimSpace(rest[end+2:])
			}
		}
		rows = append(rows, []string{name, value, nodes})
	}
	fmt.Println(renderTable([]string{"name", "value", "nodes"}, rows))
	return nil
}

// runNodes implements "hakit nodes": node name plus attached source names.
func runNodes(c *client) error {
	lines, err := c.Send("nodes")
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		rows = append(rows, []string{fields[0], strings.Join(fields[1:], ", ")})
	}
	fmt.Println(renderTable([]string{"node", "attached sources"}, rows))
	return nil
}

// runSet implements "hakit set name=value [name=value...]". "set" has
// no "." terminator of its own, so a "props" command is sent right
// behind it; its "."-terminated reply marks the end of set's output.
func runSet(c *client, args []string) error {
	lines, err := c.Send("set " + strings.Join(args, " ") + "\nprops")
	if err != nil {
		return err
	}
	for _, line := range lines {
		if strings.HasPrefix(line, ".ERROR:") {
			fmt.Fprintln(os.Stderr, line)
		}
	}
	return nil
}

// runWatch implements "hakit watch": stream "!name=value" pushes until
// interrupted.
func runWatch(c *client, stop func() bool) error {
	return c.Watch(func(name, value string) {
		fmt.Printf("%s = %s\n", name, value)
	}, stop)
}
