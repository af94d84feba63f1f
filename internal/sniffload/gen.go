// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package sniffload owns the kernel side of the pipeline: loading the
// compiled TC classifier (c/sniff.c), patching the SNIFF_PROTOCOL
// global, attaching to the clsact ingress/egress hooks, and handing the
// caller a ring reader plus the consumer loop that drains it.
//
// The classifier object is compiled ahead of time and loaded from disk
// at attach time; go generate rebuilds it from the C source.
package sniffload

//go:generate clang -O2 -g -target bpf -c c/sniff.c -o sniff.o
