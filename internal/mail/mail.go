// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mail retrieves digest mails from Gmail or a local directory.
// Sources return whole messages; callers hand the bodies to the digest
// engine.
package mail

import (
	"context"
	"iter"
	netmail "net/mail"
	"strings"
	"time"
)

// Message is one retrieved mail.
type Message struct {
	// ID is the Gmail message id, or the file name for directory sources.
	ID string `json:"id" yaml:"id"`

	// From is the raw From header (e.g. "arXiv <no-reply@arxiv.org>").
	From string `json:"from" yaml:"from"`

	Subject string    `json:"subject" yaml:"subject"`
	Date    time.Time `json:"date" yaml:"date"`

	// Body is the plain-text body. HTML-only mails are rendered to text.
	Body string `json:"body" yaml:"body"`
}

// Source fetches digest mails.
type Source interface {
	Fetch(ctx context.Context) ([]Message, error)
}

// FromAddress returns the bare address of the From header, lower-cased.
// Unparseable headers are returned trimmed and lower-cased.
func (m Message) FromAddress() string {
	if addr, err := netmail.ParseAddress(m.From); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(m.From))
}

// FilterSender keeps messages sent from sender. An empty sender keeps all.
func FilterSender(msgs []Message, sender string) []Message {
	if sender == "" {
		return msgs
	}
	sender = strings.ToLower(sender)
	var kept []Message
	for _, m := range msgs {
		if m.FromAddress() == sender {
			kept = append(kept, m)
		}
	}
	return kept
}

// Bodies yields message bodies in order.
func Bodies(msgs []Message) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, m := range msgs {
			if !yield(m.Body) {
				return
			}
		}
	}
}
