// Package endpoint implements the signal endpoint registry: sinks and
// sources addressable by name over HKCP, with local binding and
// loop-prevention locks, grounded on core/endpoint.c.
package endpoint

import "fmt"

// Sink is a named, externally-writable signal endpoint.
type Sink struct {
	id     int
	freed  bool
	Name   string
	Local  bool // HK_FLAG_LOCAL: never exposed over HKCP
	Widget string
	Chart  string
	Value  string

	locked      bool
	localSource *Source
	trace       *Trace
	onUpdate    func(value string)
}

// ID returns the sink's stable slot index.
func (s *Sink) ID() int { return s.id }

// IsPublic reports whether this sink is reachable over HKCP, i.e. was
// not registered with the local flag, matching hk_sink_is_public.
func (s *Sink) IsPublic() bool { return !s.Local }

// IsLocallyBound reports whether this sink is wired to a same-named
// local Source, fed directly in-process rather than over the network.
// This is independent of the Local registration flag above.
func (s *Sink) IsLocallyBound() bool { return s.localSource != nil }

// Source is a named, externally-readable signal endpoint.
type Source struct {
	id     int
	freed  bool
	Name   string
	Local  bool // HK_FLAG_LOCAL: never exposed over HKCP
	Widget string
	Chart  string
	Event  bool // event sources are not sent an initial value on node attach
	Value  string

	locked     bool
	localSinks []*Sink
	trace      *Trace
}

// ID returns the source's stable slot index.
func (s *Source) ID() int { return s.id }

// IsPublic reports whether this source is reachable over HKCP, i.e.
// was not registered with the local flag, matching
// hk_source_is_public.
func (s *Source) IsPublic() bool { return !s.Local }

// IsLocallyBound reports whether this source has at least one locally
// bound Sink, fed directly in-process rather than over the network.
// This is independent of the Local registration flag above.
func (s *Source) IsLocallyBound() bool { return len(s.localSinks) > 0 }

// Registry is the process-wide table of sinks and sources. The zero
// value is ready to use.
type Registry struct {
	sinks      []*Sink
	sources    []*Source
	traceDepth int

	// NotifySource, if set, is invoked after a public source's value
	// changes (but not for a source registered with the local flag),
	// driving outbound propagation to attached HKCP nodes and
	// watch-mode connections.
	NotifySource func(src *Source)
}

const (
	widgetSwitchSlide = "switch-slide"
	widgetLEDGreen    = "led-green"
	widgetLEDRed      = "led-red"
)

// NewRegistry returns an empty registry with the given trace depth
// (0 uses DefaultTraceDepth).
func NewRegistry(traceDepth int) *Registry {
	return &Registry{traceDepth: traceDepth}
}

// TraceDepth reports the configured trace ring depth.
func (r *Registry) TraceDepth() int {
	if r.traceDepth <= 0 {
		return DefaultTraceDepth
	}
	return r.traceDepth
}

var errDuplicate = fmt.Errorf("endpoint: duplicate name")

// RegisterSink allocates and registers a sink. local sets the
// HK_FLAG_LOCAL registration flag, which keeps the sink off HKCP
// entirely regardless of any local-binding it may also have. If widget
// is empty, it defaults to "switch-slide" for a local sink or
// "led-green" otherwise, matching hk_sink_alloc's defaults. onUpdate is
// invoked (guarded against reentrancy) whenever the sink's value
// changes, whether from a network "set" command or from a locally
// bound Source's updates.
func (r *Registry) RegisterSink(name string, local bool, widget, chart string, onUpdate func(string)) (*Sink, error) {
	if r.RetrieveSink(name) != nil {
		return nil, fmt.Errorf("register sink %q: %w", name, errDuplicate)
	}

	if widget == "" {
		if local {
			widget = widgetSwitchSlide
		} else {
			widget = widgetLEDGreen
		}
	}

	s := r.allocSink()
	s.Name, s.Local, s.Widget, s.Chart, s.onUpdate = name, local, widget, chart, onUpdate
	if chart != "" {
		s.trace = NewTrace(r.TraceDepth())
	}

	if src := r.RetrieveSource(name); src != nil {
		localConnect(s, src)
	}

	return s, nil
}

func (r *Registry) allocSink() *Sink {
	for _, s := range r.sinks {
		if s.freed {
			*s = Sink{id: s.id}
			return s
		}
	}
	s := &Sink{id: len(r.sinks)}
	r.sinks = append(r.sinks, s)
	return s
}

// RegisterSource allocates and registers a source. local sets the
// HK_FLAG_LOCAL registration flag. If widget is empty, it defaults to
// "led-red", matching hk_source_alloc.
func (r *Registry) RegisterSource(name string, local bool, widget, chart string, event bool) (*Source, error) {
	if r.RetrieveSource(name) != nil {
		return nil, fmt.Errorf("register source %q: %w", name, errDuplicate)
	}

	if widget == "" {
		widget = widgetLEDRed
	}

	src := r.allocSource()
	src.Name, src.Local, src.Widget, src.Chart, src.Event = name, local, widget, chart, event
	if chart != "" {
		src.trace = NewTrace(r.TraceDepth())
	}

	if sink := r.RetrieveSink(name); sink != nil {
		localConnect(sink, src)
	}

	return src, nil
}

func (r *Registry) allocSource() *Source {
	for _, s := range r.sources {
		if s.freed {
			*s = Source{id: s.id}
			return s
		}
	}
	s := &Source{id: len(r.sources)}
	r.sources = append(r.sources, s)
	return s
}

func localConnect(sink *Sink, src *Source) {
	sink.localSource = src
	src.localSinks = append(src.localSinks, sink)
}

// FreeSink releases a sink's slot index for reuse, detaching it from
// any local source. The slot index itself is never compacted.
func (r *Registry) FreeSink(s *Sink) {
	if src := s.localSource; src != nil {
		for i, ls := range src.localSinks {
			if ls == s {
				src.localSinks = append(src.localSinks[:i], src.localSinks[i+1:]...)
				break
			}
		}
	}
	s.freed = true
}

// FreeSource releases a source's slot for reuse.
func (r *Registry) FreeSource(s *Source) {
	for _, sink := range s.localSinks {
		sink.localSource = nil
	}
	s.freed = true
}

// RetrieveSink finds a non-freed sink by name.
func (r *Registry) RetrieveSink(name string) *Sink {
	for _, s := range r.sinks {
		if !s.freed && s.Name == name {
			return s
		}
	}
	return nil
}

// RetrieveSource finds a non-freed source by name.
func (r *Registry) RetrieveSource(name string) *Source {
	for _, s := range r.sources {
		if !s.freed && s.Name == name {
			return s
		}
	}
	return nil
}

// UpdateSink, unless the sink is already mid-update, stores a new value
// on it and invokes its handler. If the sink is not locally bound to
// a source and has a chart set, the value is also pushed to its trace
// ring. Reentrant updates (a handler writing back into the same sink)
// are dropped, matching hk_sink_update's locked flag.
func (r *Registry) UpdateSink(s *Sink, value string) {
	if s.locked {
		return
	}

	s.Value = value
	if s.localSource == nil && s.trace != nil {
		s.trace.Push(value)
	}

	s.locked = true
	defer func() { s.locked = false }()

	if s.onUpdate != nil {
		s.onUpdate(value)
	}
}

// UpdateSource stores a new value on src, pushes it to its trace ring
// if charted, and fans it out to every locally bound sink in
// registration order, matching hk_source_update. Once the fan-out
// completes, a public source also notifies r.NotifySource, if set, so
// HKCP can push the new value out to attached nodes and watchers.
func (r *Registry) UpdateSource(src *Source, value string) {
	if src.locked {
		return
	}

	src.Value = value
	if src.trace != nil {
		src.trace.Push(value)
	}

	src.locked = true
	defer func() { src.locked = false }()

	for _, sink := range src.localSinks {
		r.UpdateSink(sink, value)
	}

	if src.IsPublic() && r.NotifySource != nil {
		r.NotifySource(src)
	}
}

// ForEachSink visits every sink in slot order.
func (r *Registry) ForEachSink(fn func(*Sink)) {
	for _, s := range r.sinks {
		if !s.freed {
			fn(s)
		}
	}
}

// ForEachSource visits every source in slot order.
func (r *Registry) ForEachSource(fn func(*Source)) {
	for _, s := range r.sources {
		if !s.freed {
			fn(s)
		}
	}
}

// ForEachPublicSink visits every sink not registered with the local
// flag, matching hk_sink_is_public.
func (r *Registry) ForEachPublicSink(fn func(*Sink)) {
	r.ForEachSink(func(s *Sink) {
		if s.IsPublic() {
			fn(s)
		}
	})
}

// ForEachPublicSource visits every source not registered with the
// local flag, matching hk_source_is_public.
func (r *Registry) ForEachPublicSource(fn func(*Source)) {
	r.ForEachSource(func(s *Source) {
		if s.IsPublic() {
			fn(s)
		}
	})
}

// Trace returns a sink's trace ring, or nil if it has none.
func (s *Sink) Trace() *Trace { return s.trace }

// Trace returns a source's trace ring, or nil if it has none.
func (s *Source) Trace() *Trace { return s.trace }
