// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package sniffload

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/google/uuid"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/grimm-is/sniffagent/internal/wire"
)

// sniffObjects holds the classifier program and ring map assigned out of
// the loaded collection. Field tags name the program and map symbols in
// the compiled object.
type sniffObjects struct {
	Sniff      *ebpf.Program `ebpf:"sniff"`
	PacketData *ebpf.Map     `ebpf:"PACKET_DATA"`
}

func (o *sniffObjects) Close() error {
	var firstErr error
	if o.Sniff != nil {
		if err := o.Sniff.Close(); err != nil {
			firstErr = err
		}
	}
	if o.PacketData != nil {
		if err := o.PacketData.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sniffObjectName is the compiled classifier object produced by go
// generate from c/sniff.c.
const sniffObjectName = "sniff.o"

// sniffObjectPath locates the compiled classifier: next to the running
// executable first, then the working directory (where go generate leaves
// it during development).
func sniffObjectPath() string {
	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), sniffObjectName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return sniffObjectName
}

// Selector is the classifier's protocol admission knob, patched into the
// SNIFF_PROTOCOL global at load time: 0 = all, 1 = TCP, 2 = UDP.
type Selector int32

const (
	SelectorAll Selector = 0
	SelectorTCP Selector = 1
	SelectorUDP Selector = 2
)

// Attachment owns everything acquired for one (interface, direction)
// attach: the loaded collection, the TCX link, and the ring reader over
// PACKET_DATA. Closing it tears the whole chain down in reverse order.
type Attachment struct {
	Iface     string
	Direction wire.Direction
	// ID uniquely names this attach for log correlation across
	// potentially many (interface, direction) combinations.
	ID string

	objs sniffObjects
	link link.Link
	ring *ringbuf.Reader
}

// Attach loads the classifier, ensures a clsact qdisc on iface, attaches
// the program to the requested direction, and opens the PACKET_DATA ring
// for reading. Acquisition order: raise rlimit, load bytecode with the
// patched global, add clsact (idempotent), attach, obtain the ring
// handle.
func Attach(iface string, direction wire.Direction, selector Selector) (*Attachment, error) {
	if direction != wire.DirIngress && direction != wire.DirEgress {
		return nil, fmt.Errorf("sniffload: attach direction must be ingress or egress, got %v", direction)
	}

	if err := raiseMemlockRlimit(); err != nil {
		return nil, fmt.Errorf("sniffload: raise memlock rlimit: %w", err)
	}

	spec, err := ebpf.LoadCollectionSpec(sniffObjectPath())
	if err != nil {
		return nil, fmt.Errorf("sniffload: load classifier object: %w", err)
	}
	if err := spec.RewriteConstants(map[string]interface{}{
		"SNIFF_PROTOCOL": int32(selector),
	}); err != nil {
		return nil, fmt.Errorf("sniffload: patch SNIFF_PROTOCOL: %w", err)
	}

	var objs sniffObjects
	if err := spec.LoadAndAssign(&objs, nil); err != nil {
		return nil, fmt.Errorf("sniffload: load classifier collection: %w", err)
	}

	if err := ensureClsact(iface); err != nil {
		objs.Close()
		return nil, fmt.Errorf("sniffload: ensure clsact qdisc on %s: %w", iface, err)
	}

	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		objs.Close()
		return nil, fmt.Errorf("sniffload: lookup interface %s: %w", iface, err)
	}

	attachType := ebpf.AttachTCXIngress
	if direction == wire.DirEgress {
		attachType = ebpf.AttachTCXEgress
	}

	lnk, err := link.AttachTCX(link.TCXOptions{
		Program:   objs.Sniff,
		Interface: ifi.Index,
		Attach:    attachType,
	})
	if err != nil {
		objs.Close()
		return nil, fmt.Errorf("sniffload: attach %s %s: %w", iface, direction, err)
	}

	rd, err := ringbuf.NewReader(objs.PacketData)
	if err != nil {
		lnk.Close()
		objs.Close()
		return nil, fmt.Errorf("sniffload: open PACKET_DATA ring: %w", err)
	}

	return &Attachment{
		Iface:     iface,
		Direction: direction,
		ID:        uuid.NewString(),
		objs:      objs,
		link:      lnk,
		ring:      rd,
	}, nil
}

// Reader exposes the ring buffer reader to the consumer loop.
func (a *Attachment) Reader() *ringbuf.Reader {
	return a.ring
}

// Close detaches the classifier and releases the ring, link, and
// collection handles. Detach is implicit in the link's Close.
func (a *Attachment) Close() error {
	var firstErr error
	if err := a.ring.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.link.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	a.objs.Close()
	return firstErr
}

// ensureClsact adds a clsact qdisc to iface, ignoring EEXIST so repeated
// attaches on the same interface stay idempotent.
func ensureClsact(iface string) error {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("lookup link %s: %w", iface, err)
	}

	qdisc := &netlink.GenericQdisc{
		QdiscAttrs: netlink.QdiscAttrs{
			LinkIndex: link.Attrs().Index,
			Handle:    netlink.MakeHandle(0xffff, 0),
			Parent:    netlink.HANDLE_CLSACT,
		},
		QdiscType: "clsact",
	}

	if err := netlink.QdiscAdd(qdisc); err != nil && !errors.Is(err, syscall.EEXIST) {
		return err
	}
	return nil
}

// raiseMemlockRlimit removes the locked-memory rlimit before loading the
// collection; kernels without memcg-based accounting charge BPF maps
// against RLIMIT_MEMLOCK.
func raiseMemlockRlimit() error {
	return unix.Setrlimit(unix.RLIMIT_MEMLOCK, &unix.Rlimit{
		Cur: unix.RLIM_INFINITY,
		Max: unix.RLIM_INFINITY,
	})
}
