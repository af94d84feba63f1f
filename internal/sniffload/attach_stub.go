// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux
// +build !linux

package sniffload

import (
	"fmt"

	"github.com/cilium/ebpf/ringbuf"

	"github.com/grimm-is/sniffagent/internal/errors"
	"github.com/grimm-is/sniffagent/internal/wire"
)

// Selector is the classifier's protocol admission knob; kept here so
// callers on non-Linux hosts can still compile against the same API.
type Selector int32

const (
	SelectorAll Selector = 0
	SelectorTCP Selector = 1
	SelectorUDP Selector = 2
)

// Attachment is an unused placeholder on non-Linux platforms: TC
// classifiers are a Linux-only facility.
type Attachment struct {
	Iface     string
	Direction wire.Direction
	ID        string
}

// Attach always fails on non-Linux hosts: there is no clsact/TCX hook to
// attach to.
func Attach(iface string, direction wire.Direction, _ Selector) (*Attachment, error) {
	return nil, errors.Wrap(fmt.Errorf("tc classifiers require linux"), errors.KindUnavailable, "sniffload: attach "+iface)
}

// Close is a no-op; Attach never succeeds on this platform.
func (a *Attachment) Close() error { return nil }

// Reader always returns nil; Attach never succeeds on this platform so
// no caller ever dereferences it.
func (a *Attachment) Reader() *ringbuf.Reader { return nil }
