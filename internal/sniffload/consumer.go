// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sniffload

import (
	"context"
	"errors"

	"github.com/cilium/ebpf/ringbuf"

	"github.com/grimm-is/sniffagent/internal/logging"
	"github.com/grimm-is/sniffagent/internal/wire"
)

// Consumer is the user-space half of one (interface, direction) attach:
// it owns the Attachment and drains its ring into a shared bounded
// channel, decoding each RawRecord into a FlowPacket along the way.
type Consumer struct {
	attachment *Attachment
	logger     *logging.Logger
}

// NewConsumer builds a Consumer over an already-established Attachment.
func NewConsumer(attachment *Attachment, logger *logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.New(logging.DefaultConfig())
	}
	return &Consumer{
		attachment: attachment,
		logger: logger.WithComponent("consumer").With(
			"iface", attachment.Iface, "direction", attachment.Direction.String(), "attach_id", attachment.ID,
		),
	}
}

// Run drains the ring until the context is cancelled or the ring reader
// is closed; both are normal exits and Run returns nil. A send blocks
// while the output channel is full and is abandoned when the context is
// cancelled.
func (c *Consumer) Run(ctx context.Context, out chan<- wire.FlowPacket) error {
	rd := c.attachment.Reader()
	c.logger.Info("ring consumer started")

	go func() {
		<-ctx.Done()
		rd.Close()
	}()

	for {
		record, err := rd.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) || ctx.Err() != nil {
				c.logger.Info("ring consumer stopped")
				return nil
			}
			// Transient per-packet error: log and keep draining.
			c.logger.Error("ring read error", "error", err)
			continue
		}

		pkt, err := wire.Decode(record.RawSample)
		if err != nil {
			c.logger.Error("decode error, dropping record", "error", err)
			continue
		}

		flow := wire.FlowPacket{
			Iface:     c.attachment.Iface,
			Direction: c.attachment.Direction,
			Pkt:       pkt,
		}

		select {
		case out <- flow:
		case <-ctx.Done():
			return nil
		}
	}
}
