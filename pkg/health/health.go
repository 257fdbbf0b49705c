// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

// Package health collects point-in-time diagnostic checks. Reports are
// safe to serialize to JSON.
package health

import "time"

// Status is the outcome of one check.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Check is one diagnostic result.
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail"`
}

// Report is an ordered set of checks.
type Report struct {
	CheckedAt time.Time `json:"checked_at"`
	Checks    []Check   `json:"checks"`
}

// NewReport starts an empty report stamped with at.
func NewReport(at time.Time) *Report {
	return &Report{CheckedAt: at.UTC()}
}

// Run records fn's outcome under name. An error fails the check and
// becomes its detail.
func (r *Report) Run(name string, fn func() (string, error)) {
	detail, err := fn()
	if err != nil {
		r.Checks = append(r.Checks, Check{Name: name, Status: StatusFail, Detail: err.Error()})
		return
	}
	r.Checks = append(r.Checks, Check{Name: name, Status: StatusOK, Detail: detail})
}

// Warn records a check that passed with a caveat.
func (r *Report) Warn(name, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: StatusWarn, Detail: detail})
}

// Healthy reports whether no check failed.
func (r *Report) Healthy() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return false
		}
	}
	return true
}
