package teams

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ExportMessage is one message parsed from a Teams chat export file.
type ExportMessage struct {
	Sender    string
	Content   string
	Timestamp time.Time
}

// ParseExport reads a Teams chat export. JSON exports (Graph-shaped or
// compliance dumps) and basic HTML exports are supported.
func ParseExport(path string) ([]ExportMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSONExport(raw)
	case ".html", ".htm":
		return parseHTMLExport(string(raw)), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", filepath.Ext(path))
	}
}

func parseJSONExport(raw []byte) ([]ExportMessage, error) {
	// Exports come either as a bare array or wrapped in a messages/value
	// object, depending on which tool produced them.
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapper struct {
			Messages []json.RawMessage `json:"messages"`
			Value    []json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse export: %w", err)
		}
		items = wrapper.Messages
		if len(items) == 0 {
			items = wrapper.Value
		}
	}

	var messages []ExportMessage
	for _, item := range items {
		if msg, ok := parseExportItem(item); ok {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

type exportItem struct {
	From   json.RawMessage `json:"from"`
	Sender json.RawMessage `json:"sender"`
	Body   struct {
		Content string `json:"content"`
	} `json:"body"`
	Content         string `json:"content"`
	Message         string `json:"message"`
	CreatedDateTime string `json:"createdDateTime"`
	Timestamp       string `json:"timestamp"`
	SentDateTime    string `json:"sentDateTime"`
	Date            string `json:"date"`
}

func parseExportItem(raw json.RawMessage) (ExportMessage, bool) {
	var item exportItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return ExportMessage{}, false
	}

	content := item.Body.Content
	if content == "" {
		content = item.Content
	}
	if content == "" {
		content = item.Message
	}
	if strings.Contains(content, "<") {
		content = StripHTML(content)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ExportMessage{}, false
	}

	sender := displayName(item.From)
	if sender == "" {
		sender = displayName(item.Sender)
	}
	if sender == "" {
		sender = "Unknown"
	}

	return ExportMessage{
		Sender:    sender,
		Content:   content,
		Timestamp: parseExportTime(item.CreatedDateTime, item.Timestamp, item.SentDateTime, item.Date),
	}, true
}

// displayName handles the sender field being either a plain string or a
// nested Graph-style object.
func displayName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name
	}
	var nested struct {
		DisplayName string `json:"displayName"`
		User        struct {
			DisplayName string `json:"displayName"`
		} `json:"user"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		if nested.User.DisplayName != "" {
			return nested.User.DisplayName
		}
		return nested.DisplayName
	}
	return ""
}

func parseExportTime(candidates ...string) time.Time {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05"}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t
			}
		}
	}
	return time.Now()
}

var exportHTMLRe = regexp.MustCompile(`(?s)<div class="message"[^>]*>.*?<span class="sender">([^<]+)</span>.*?<span class="time">([^<]+)</span>.*?<div class="content">([^<]+)</div>`)

func parseHTMLExport(content string) []ExportMessage {
	var messages []ExportMessage
	for _, m := range exportHTMLRe.FindAllStringSubmatch(content, -1) {
		messages = append(messages, ExportMessage{
			Sender:    strings.TrimSpace(m[1]),
			Content:   strings.TrimSpace(m[3]),
			Timestamp: parseExportTime(strings.TrimSpace(m[2])),
		})
	}
	return messages
}
