package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoDelivery marks a configured or contracted channel that produced no
// records.
var ErrNoDelivery = errors.New("no delivery records")

// MalformedValueError is a locale value that does not parse under the
// channel's configured profile. Local to one field.
type MalformedValueError struct {
	Raw     string
	Profile string
	Reason  string
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("malformed value %q under profile %s: %s", e.Raw, e.Profile, e.Reason)
}

// SchemaMismatchError means the configured mapping references a column or a
// data relationship that does not hold. Local to one channel.
type SchemaMismatchError struct {
	ChannelID string
	Column    string
	Detail    string
}

func (e *SchemaMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("schema mismatch")
	if e.ChannelID != "" {
		b.WriteString(" in channel " + e.ChannelID)
	}
	if e.Column != "" {
		b.WriteString(fmt.Sprintf(" (column %q)", e.Column))
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	return b.String()
}

// UndefinedCompletionMetricError means a channel has no usable completion
// denominator.
type UndefinedCompletionMetricError struct {
	ChannelID string
	Detail    string
}

func (e *UndefinedCompletionMetricError) Error() string {
	msg := "undefined completion metric for channel " + e.ChannelID
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// UnresolvedPlaceholderError lists template keys with no slot value. Fatal
// for projection.
type UnresolvedPlaceholderError struct {
	Keys []string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return "unresolved placeholders: " + strings.Join(e.Keys, ", ")
}
