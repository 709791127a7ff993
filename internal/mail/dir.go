// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mail

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DirSource reads saved digests from a directory: .eml files (RFC 5322,
// as exported by most mail clients) and .txt files holding a bare body.
// Files are read in name order; other extensions are ignored.
type DirSource struct {
	dir    string
	sender string
	logger *zap.Logger
}

// NewDirSource returns a source over dir. When sender is set, .eml files
// from other senders are skipped; .txt files have no sender and are kept.
func NewDirSource(dir, sender string, logger *zap.Logger) *DirSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirSource{dir: dir, sender: strings.ToLower(sender), logger: logger}
}

// Fetch reads every digest file in the directory. Files that fail to parse
// are logged and skipped.
func (s *DirSource) Fetch(ctx context.Context) ([]Message, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading mail directory %s: %w", s.dir, err)
	}

	var msgs []Message
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())

		var msg Message
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".eml":
			msg, err = ReadFile(path)
			if err != nil {
				s.logger.Warn("skipping unreadable mail", zap.String("file", path), zap.Error(err))
				continue
			}
			if s.sender != "" && msg.FromAddress() != s.sender {
				s.logger.Debug("skipping mail from other sender",
					zap.String("file", path), zap.String("from", msg.From))
				continue
			}
		case ".txt":
			msg, err = readText(path)
			if err != nil {
				s.logger.Warn("skipping unreadable digest", zap.String("file", path), zap.Error(err))
				continue
			}
		default:
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ReadFile parses one .eml file.
func ReadFile(path string) (Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return Message{}, err
	}
	defer f.Close()

	msg, err := Parse(f)
	if err != nil {
		return Message{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	msg.ID = filepath.Base(path)
	return msg, nil
}

// LoadFile reads a digest file: .eml files are parsed as MIME messages and
// anything else is taken as a plain-text body.
func LoadFile(path string) (Message, error) {
	if strings.EqualFold(filepath.Ext(path), ".eml") {
		return ReadFile(path)
	}
	return readText(path)
}

func readText(path string) (Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Message{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Message{}, err
	}
	return Message{ID: filepath.Base(path), Date: info.ModTime(), Body: string(data)}, nil
}

// Parse reads an RFC 5322 message. The text/plain part is preferred; an
// HTML-only message is rendered to text.
func Parse(r io.Reader) (Message, error) {
	m, err := netmail.ReadMessage(r)
	if err != nil {
		return Message{}, err
	}

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(m.Header.Get("Subject"))
	if err != nil {
		subject = m.Header.Get("Subject")
	}
	msg := Message{
		ID:      strings.Trim(m.Header.Get("Message-Id"), "<>"),
		From:    m.Header.Get("From"),
		Subject: subject,
	}
	if date, err := m.Header.Date(); err == nil {
		msg.Date = date
	}

	plain, html, err := walkParts(m.Header.Get("Content-Type"), m.Header.Get("Content-Transfer-Encoding"), m.Body)
	if err != nil {
		return Message{}, err
	}
	msg.Body, err = pickBody(plain, html)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// walkParts returns the first text/plain and first text/html bodies found
// in a possibly nested MIME tree.
func walkParts(contentType, encoding string, r io.Reader) (plain, html string, err error) {
	mediaType := "text/plain"
	var params map[string]string
	if contentType != "" {
		mediaType, params, err = mime.ParseMediaType(contentType)
		if err != nil {
			return "", "", fmt.Errorf("parsing content type %q: %w", contentType, err)
		}
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		mr := multipart.NewReader(r, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", "", fmt.Errorf("reading multipart body: %w", err)
			}
			p, h, err := walkParts(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if err != nil {
				return "", "", err
			}
			if plain == "" {
				plain = p
			}
			if html == "" {
				html = h
			}
		}
	case mediaType == "text/plain", mediaType == "text/html":
		b, err := io.ReadAll(decodeTransfer(encoding, r))
		if err != nil {
			return "", "", fmt.Errorf("reading %s body: %w", mediaType, err)
		}
		if mediaType == "text/plain" {
			plain = string(b)
		} else {
			html = string(b)
		}
	}
	return plain, html, nil
}

func pickBody(plain, html string) (string, error) {
	if plain != "" || html == "" {
		return plain, nil
	}
	return htmlToText(html)
}
