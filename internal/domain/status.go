// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// ProcessingStatus tracks a request along the happy path. Failed states carry
// a reason suffix and are represented as "failed:<reason>" in the database.
type ProcessingStatus string

const (
	StatusPending            ProcessingStatus = "pending"
	StatusDownloadInitiated  ProcessingStatus = "download_initiated"
	StatusQueued             ProcessingStatus = "queued"
	StatusOrganizingFiles    ProcessingStatus = "organizing_files"
	StatusGeneratingMetadata ProcessingStatus = "generating_metadata"
	StatusSavingCover        ProcessingStatus = "saving_cover"
	StatusCompleted          ProcessingStatus = "completed"
	StatusReviewRequired     ProcessingStatus = "review_required"

	failedPrefix = "failed:"
)

// happyPathRank orders the non-failed states so the monitor and processor can
// assert monotonic progress. Higher rank means further along.
var happyPathRank = map[ProcessingStatus]int{
	StatusPending:            0,
	StatusDownloadInitiated:  1,
	StatusQueued:             2,
	StatusOrganizingFiles:    3,
	StatusGeneratingMetadata: 4,
	StatusSavingCover:        5,
	StatusCompleted:          6,
}

// StatusFailed builds a failed status with a single-line reason.
func StatusFailed(reason string) ProcessingStatus {
	reason = strings.TrimSpace(strings.SplitN(reason, "\n", 2)[0])
	if len(reason) > 200 {
		reason = reason[:200]
	}
	return ProcessingStatus(failedPrefix + reason)
}

// IsFailed reports whether the status is any failed:<reason> state.
func (s ProcessingStatus) IsFailed() bool {
	return strings.HasPrefix(string(s), failedPrefix)
}

// FailureReason returns the reason portion of a failed status, or "".
func (s ProcessingStatus) FailureReason() string {
	if !s.IsFailed() {
		return ""
	}
	return strings.TrimPrefix(string(s), failedPrefix)
}

// IsTerminal reports whether no further automatic transitions happen.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusReviewRequired || s.IsFailed()
}

// Rank returns the happy-path position of s, or -1 for failed and
// review_required states.
func (s ProcessingStatus) Rank() int {
	if r, ok := happyPathRank[s]; ok {
		return r
	}
	return -1
}

// IsValid reports whether s is a recognized status value.
func (s ProcessingStatus) IsValid() bool {
	if s.IsFailed() || s == StatusReviewRequired {
		return true
	}
	_, ok := happyPathRank[s]
	return ok
}
