// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"fmt"
	"strings"
)

// announcement renders one entry in the layout arXiv mails use:
//
//	\\
//	<header>
//	\\
//	<abstract>
//	\\<footer>
func announcement(header, abstract, footer string) string {
	return "\n\\\\\n" + header + "\n\\\\\n" + abstract + "\n\\\\" + footer + "\n"
}

func header(id, date, title, authors, categories string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "arXiv:%s\n", id)
	fmt.Fprintf(&b, "Date: %s   (7kb)\n\n", date)
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "Authors: %s\n", authors)
	fmt.Fprintf(&b, "Categories: %s", categories)
	return b.String()
}

func footer(id string) string {
	return fmt.Sprintf(" ( http://arxiv.org/abs/%s ,  7kb)", id)
}

func wellFormed(id, title string) string {
	return announcement(
		header(id, "Mon, 4 Jan 2021 00:00:00 GMT", title, "A. One, B. Two", "cs.CL"),
		"  An abstract about "+title+".",
		footer(id),
	)
}

const preamble = "Submissions to:\nComputation and Language\nreceived from  Thu 31 Dec 20 19:00:00 GMT  to  Mon  4 Jan 21 19:00:00 GMT\n"

const trailer = "\n%%--%%--%%--%%--%%--%%--%%--%%--%%--%%--%%--%%--%%--%%--%%--%%--%%--%%\n"

// digestOf joins entries the way a notification mail does, with the mail
// preamble before the first rule and boilerplate after the last.
func digestOf(entries ...string) string {
	parts := append([]string{preamble}, entries...)
	parts = append(parts, trailer)
	return strings.Join(parts, DefaultSeparator)
}
