// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sim

import (
	"fmt"
	"time"
)

type policyMode uint8

const (
	modeImmediate policyMode = iota
	modeAsync
	modeOnWait
	modeManual
)

// Policy decides when the simulated GPU retires queued work.
type Policy struct {
	mode    policyMode
	latency time.Duration
	lag     uint64
}

// Immediate retires work as soon as it is queued: the GPU is never behind.
func Immediate() Policy { return Policy{mode: modeImmediate} }

// Async retires each submission latency after it was queued, on a
// background goroutine.
func Async(latency time.Duration) Policy { return Policy{mode: modeAsync, latency: latency} }

// OnWait retires nothing until the CPU waits on a fence. A wait for value v
// then retires work until the fence reaches max(v, lastSignaled-lag), so the
// GPU stays lag signals behind the CPU. OnWait makes blocking behavior
// deterministic for tests.
func OnWait(lag uint64) Policy { return Policy{mode: modeOnWait, lag: lag} }

// Manual retires work only through Device.RetireNext and Device.RetireAll.
func Manual() Policy { return Policy{mode: modeManual} }

// String describes the policy.
func (p Policy) String() string {
	switch p.mode {
	case modeAsync:
		return fmt.Sprintf("async(%v)", p.latency)
	case modeOnWait:
		return fmt.Sprintf("on-wait(lag=%d)", p.lag)
	case modeManual:
		return "manual"
	default:
		return "immediate"
	}
}
