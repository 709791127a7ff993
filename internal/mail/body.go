// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mail

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// htmlToText renders an HTML mail body to text. Line breaks and <pre>
// blocks are kept as newlines so digest separators survive.
func htmlToText(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing HTML body: %w", err)
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(newline())
	})
	doc.Find("p, div, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(newline())
	})
	return strings.TrimSpace(doc.Find("body").Text()), nil
}

func newline() *html.Node {
	return &html.Node{Type: html.TextNode, Data: "\n"}
}

// decodeTransfer wraps r with the decoder for a Content-Transfer-Encoding.
// Unknown encodings (7bit, 8bit, binary) pass through.
func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

// decodeBase64URL decodes Gmail's base64url body data, padded or not.
func decodeBase64URL(data string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", fmt.Errorf("decoding body: %w", err)
	}
	return string(b), nil
}
