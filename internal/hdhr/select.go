// SPDX-License-Identifier: MIT

package hdhr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	platformnet "github.com/jmattroberts/hdhr-disk-space-monitor/internal/platform/net"
)

// Device selection keywords accepted in place of an id, IP address or host.
const (
	SelectDiscover = "discover"
	SelectWildcard = "FFFFFFFF"
)

var (
	// ErrNoDevices indicates discovery found no storage servers at all.
	ErrNoDevices = errors.New("no storage devices found")
	// ErrDeviceNotFound indicates a requested device matched no storage server.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDuplicateDevice indicates two requests resolved to the same device.
	ErrDuplicateDevice = errors.New("devices are not unique")
)

// NotFoundError names the request that matched nothing.
type NotFoundError struct {
	Request string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("device not found: %s (non-storage devices are ignored)", e.Request)
}

func (e *NotFoundError) Unwrap() error { return ErrDeviceNotFound }

// DuplicateError names two requests that refer to the same device.
type DuplicateError struct {
	Request  string
	Existing string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("device ids %s and %s refer to the same device", e.Request, e.Existing)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateDevice }

// Monitored pairs a storage server with the settings key it is monitored under.
type Monitored struct {
	Key    string
	Device *Device
}

// Selector maps the operator's device requests onto discovered storage
// servers.
type Selector struct {
	Requests []string
	Resolver platformnet.Resolver
}

// Select returns the monitored devices in request order. "discover" expands
// to every storage server, keyed by id or IP; any other request is keyed by
// the request string itself. Requests that match nothing are reported as
// NotFoundError values joined into the returned error while the remaining
// matches are still returned.
func (s Selector) Select(ctx context.Context, storage []*Device) ([]Monitored, error) {
	if len(storage) == 0 {
		return nil, ErrNoDevices
	}
	requests := s.Requests
	if len(requests) == 0 {
		requests = []string{SelectDiscover}
	}

	var out []Monitored
	for _, req := range requests {
		if strings.EqualFold(req, SelectDiscover) {
			for _, d := range storage {
				out = append(out, Monitored{Key: d.Key(), Device: d})
			}
			break
		}
	}

	var errs []error
	for _, req := range requests {
		if strings.EqualFold(req, SelectDiscover) {
			continue
		}
		d := s.match(ctx, storage, req)
		if d == nil {
			errs = append(errs, &NotFoundError{Request: req})
			continue
		}
		for _, m := range out {
			if m.Device == d {
				return nil, &DuplicateError{Request: req, Existing: m.Key}
			}
		}
		out = append(out, Monitored{Key: req, Device: d})
	}
	return out, errors.Join(errs...)
}

func (s Selector) match(ctx context.Context, storage []*Device, req string) *Device {
	if strings.EqualFold(req, SelectWildcard) {
		return storage[0]
	}
	for _, d := range storage {
		if d.ID != "" && strings.EqualFold(d.ID, req) {
			return d
		}
	}
	ips, err := platformnet.ResolveIPv4(ctx, s.Resolver, req)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		for _, d := range storage {
			if d.IP == ip {
				return d
			}
		}
	}
	return nil
}

// Tag renders the device label used on log lines:
// "[<friendly name> <id or ip> (<key if different>)]".
func Tag(friendlyName string, m Monitored) string {
	ident := m.Device.ID
	if ident == "" {
		ident = m.Device.IP
	}
	var b strings.Builder
	b.WriteByte('[')
	if friendlyName != "" {
		b.WriteString(friendlyName)
		b.WriteByte(' ')
	}
	b.WriteString(ident)
	if m.Key != ident {
		b.WriteString(" (")
		b.WriteString(m.Key)
		b.WriteByte(')')
	}
	b.WriteByte(']')
	return b.String()
}
