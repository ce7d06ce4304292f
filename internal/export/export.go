// Package export parses Telegram Desktop chat export files into plain text
// messages suitable for the style corpus.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// exportFile is the top-level shape of a Telegram Desktop export: either an
// object with a "messages" array, or a bare array of messages.
type exportFile struct {
	Messages []exportMessage `json:"messages"`
}

type exportMessage struct {
	Text json.RawMessage `json:"text"`
}

// Parse reads a Telegram Desktop JSON export and returns the non-empty text
// messages in file order. Service messages and media without text come back
// as empty strings in the export format and are skipped.
func Parse(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("export: read: %w", err)
	}

	var messages []exportMessage
	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' })
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("export: parse message array: %w", err)
		}
	} else {
		var file exportFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("export: parse export file: %w", err)
		}
		messages = file.Messages
	}

	var texts []string
	for _, msg := range messages {
		text := flattenText(msg.Text)
		if text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}

// flattenText normalizes the export "text" field, which is either a plain
// string or an array mixing strings and entity objects like
// {"type": "link", "text": "..."}.
func flattenText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return strings.TrimSpace(plain)
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}

	var b strings.Builder
	for _, part := range parts {
		var s string
		if err := json.Unmarshal(part, &s); err == nil {
			b.WriteString(s)
			continue
		}
		var entity struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(part, &entity); err == nil {
			b.WriteString(entity.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
