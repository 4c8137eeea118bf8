package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hakit/internal/prop"
)

type loadSection int

const (
	sectionNone loadSection = iota
	sectionObjects
	sectionNets
)

// LoadTile reads a tile definition from path. A directory is treated
// as a directory tile: every "*.hk" file inside it is loaded into one
// tile, in directory order, matching hk_app_create's directory-tile
// handling.
func LoadTile(name, path string, reg *Registry) (*Tile, error) {
	t := NewTile(name, reg)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load tile %q: %w", name, err)
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("load tile %q: %w", name, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".hk") {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	} else {
		files = []string{path}
	}

	for _, f := range files {
		if err := t.loadFile(f); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *Tile) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load %q: %w", path, err)
	}
	defer f.Close()
	return t.loadReader(f)
}

func (t *Tile) loadReader(r io.Reader) error {
	section := sectionNone
	scanner := bufio.NewScanner(r)

	var pendingNetRefs []string

	for scanner.Scan() {
		line := sanitizeLine(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '#' || line[0] == ';' {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			switch strings.ToLower(strings.Trim(line, "[]")) {
			case "objects":
				section = sectionObjects
			case "nets":
				section = sectionNets
			default:
				section = sectionNone
			}
			continue
		}

		name, rest := splitNamePrefix(line)
		fields := Tokenize(rest)

		switch section {
		case sectionObjects:
			if len(fields) == 0 {
				return fmt.Errorf("object line with no class: %q", line)
			}
			class := t.reg.Find(fields[0])
			if class == nil {
				return fmt.Errorf("unknown class %q", fields[0])
			}
			if _, err := t.CreateObject(name, class, parseProps(fields[1:])); err != nil {
				return err
			}
		case sectionNets:
			pendingNetRefs = fields
			if err := t.connectNet(pendingNetRefs); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line outside any section: %q", line)
		}
	}

	return scanner.Err()
}

// parseProps splits each "name=value" token into the object's property
// map, matching hk_obj_create's per-token split on '='. A token with
// no '=' is stored with an empty value, under its whole text as the
// name.
func parseProps(fields []string) prop.Map {
	props := prop.New()
	for _, field := range fields {
		name, value := field, ""
		if i := strings.IndexByte(field, '='); i >= 0 {
			name, value = field[:i], field[i+1:]
		}
		props.Set(name, value)
	}
	return props
}

func sanitizeLine(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c < 0x20 || c == 0x7f {
			c = ' '
		}
		out = append(out, c)
	}
	return strings.TrimSpace(string(out))
}

func splitNamePrefix(line string) (name, rest string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", line
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])
}
