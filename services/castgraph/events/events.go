// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events carries castgraph notifications over NATS.
//
// Two subjects are used:
//   - SubjectSnapshotSwapped: published after every graph snapshot swap
//   - SubjectReloadRequest: request/reply, asks a server to reload its
//     dataset file and rebuild
//
// Trace context travels in the message headers, so a reload triggered from
// the CLI shows up in the same trace as the rebuild it causes.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects.
const (
	SubjectSnapshotSwapped = "castgraph.snapshot.swapped"
	SubjectReloadRequest   = "castgraph.records.reload"
)

// ErrNotConnected is returned when the NATS server cannot be reached.
var ErrNotConnected = errors.New("nats not connected")

// SnapshotEvent describes a published graph snapshot.
type SnapshotEvent struct {
	Version       uint64    `json:"version"`
	SourceVersion uint64    `json:"source_version"`
	Actors        int       `json:"actors"`
	Movies        int       `json:"movies"`
	Edges         int       `json:"edges"`
	BuiltAt       time.Time `json:"built_at"`

	// Source is the rebuild trigger, e.g. "http" or "watch".
	Source string `json:"source"`
}

// ReloadRequest asks a server to reload its dataset file.
type ReloadRequest struct {
	// RequestedBy names the caller, for logs.
	RequestedBy string `json:"requested_by"`
}

// ReloadReply is the answer to a ReloadRequest.
type ReloadReply struct {
	Version uint64 `json:"version"`
	Actors  int    `json:"actors"`
	Movies  int    `json:"movies"`
	Error   string `json:"error,omitempty"`
}

// Publisher announces snapshot swaps.
type Publisher interface {
	PublishSnapshot(ctx context.Context, ev SnapshotEvent) error
}

// NATSPublisher publishes snapshot events on SubjectSnapshotSwapped.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher wraps a connection.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// PublishSnapshot implements Publisher.
func (p *NATSPublisher) PublishSnapshot(ctx context.Context, ev SnapshotEvent) error {
	if p.nc == nil || !p.nc.IsConnected() {
		return ErrNotConnected
	}
	return Publish(ctx, p.nc, SubjectSnapshotSwapped, ev)
}

// NopPublisher discards events. Used when NATS is not configured.
type NopPublisher struct{}

// PublishSnapshot implements Publisher.
func (NopPublisher) PublishSnapshot(context.Context, SnapshotEvent) error { return nil }

// SubscribeSnapshots delivers snapshot events to handler.
func SubscribeSnapshots(nc *nats.Conn, handler func(context.Context, SnapshotEvent)) (*nats.Subscription, error) {
	return Subscribe(nc, SubjectSnapshotSwapped, handler)
}

// ServeReloads answers reload requests with handler.
func ServeReloads(nc *nats.Conn, handler func(context.Context, ReloadRequest) ReloadReply) (*nats.Subscription, error) {
	return Respond(nc, SubjectReloadRequest, handler)
}

// RequestReload asks a server to reload and waits for its reply.
func RequestReload(ctx context.Context, nc *nats.Conn, req ReloadRequest) (ReloadReply, error) {
	return Request[ReloadRequest, ReloadReply](ctx, nc, SubjectReloadRequest, req)
}
