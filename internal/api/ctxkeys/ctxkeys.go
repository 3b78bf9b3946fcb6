// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ctxkeys holds the context keys the identity middleware writes and
// the handlers read. A dedicated package keeps the two from importing each
// other.
package ctxkeys

// Key is a typed context key so values cannot collide with other packages.
type Key int

// Username carries the caller identity resolved from the request header.
const Username Key = iota
