// Package netif watches for network interface and address changes,
// grounded on os/netif.c and os/netif_watch.c's libnl-based interface
// monitor, reimplemented here with vishvananda/netlink. HKCP's
// advertiser sends an immediate extra broadcast whenever an interface
// comes up or an address changes, so peers on a newly-attached network are
// discovered promptly instead of waiting for the next periodic tick.
package netif

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/vishvananda/netlink"
)

// DefaultDebounce is how long Watch waits for the interface set to go
// quiet before invoking onChange, matching §4.4's "low-pass delay
// (default 5s)" so a burst of link/addr events (e.g. an interface
// flapping up then immediately getting an address) collapses into one
// callback instead of one per event.
const DefaultDebounce = 5 * time.Second

// Watch subscribes to link and address changes and invokes onChange
// after debounce of quiet time following the last event, until ctx is
// cancelled. debounce <= 0 uses DefaultDebounce. It degrades to doing
// nothing if netlink subscription isn't available (e.g. non-Linux, or
// insufficient privilege), logging a warning rather than failing the
// daemon — interface-change detection is a discovery optimization, not
// a correctness requirement.
func Watch(ctx context.Context, debounce time.Duration, onChange func()) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	events := make(chan struct{}, 1)
	signal := func() {
		select {
		case events <- struct{}{}:
		default:
		}
	}

	linkCh := make(chan netlink.LinkUpdate)
	linkDone := make(chan struct{})
	if err := netlink.LinkSubscribe(linkCh, linkDone); err != nil {
		slog.Warn("netif: link subscription unavailable", "err", err)
	} else {
		go func() {
			defer close(linkDone)
			for {
				select {
				case <-ctx.Done():
					return
				case <-linkCh:
					signal()
				}
			}
		}()
	}

	addrCh := make(chan netlink.AddrUpdate)
	addrDone := make(chan struct{})
	if err := netlink.AddrSubscribe(addrCh, addrDone); err != nil {
		slog.Warn("netif: address subscription unavailable", "err", err)
		return
	}

	go func() {
		defer close(addrDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-addrCh:
				signal()
			}
		}
	}()

	go debounceLoop(ctx, events, debounce, onChange)
}

// debounceLoop collapses a burst of events into a single onChange call
// once debounce has elapsed since the last one seen.
func debounceLoop(ctx context.Context, events <-chan struct{}, debounce time.Duration, onChange func()) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-events:
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange()
		}
	}
}

// Interfaces lists up network interface names, matching
// netif_show_interfaces's startup log of available interfaces.
func Interfaces() ([]string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, l := range links {
		attrs := l.Attrs()
		if attrs.Flags&net.FlagUp != 0 {
			names = append(names, attrs.Name)
		}
	}
	return names, nil
}
