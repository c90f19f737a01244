// Package capture parses transcript and note files and tracks which ones
// have already been ingested, so watched folders can be replayed safely.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Parsed is the normalised output of a format parser: the text worth
// capturing plus whatever metadata the file carried.
type Parsed struct {
	Content      string
	Participants []string
	Title        string
	Project      string
	Topics       []string
	SourceFile   string
}

var (
	// Matches cue timing lines like "00:00:01.000 --> 00:00:05.000".
	cueTimingRe = regexp.MustCompile(`^(\d{1,2}:\d{2}:\d{2}\.\d{3}|\d{2}:\d{2}\.\d{3})\s*-->\s*(\d{1,2}:\d{2}:\d{2}\.\d{3}|\d{2}:\d{2}\.\d{3})`)
	// Matches WebVTT voice spans like "<v Alice>" or "<v.quiet Alice>".
	voiceTagRe = regexp.MustCompile(`<v(?:\.[^>\s]*)?\s+([^>]+)>`)
	// Matches "Speaker Name: text" prefixes.
	speakerRe = regexp.MustCompile(`^([^:]+):\s*(.*)$`)

	paragraphRe = regexp.MustCompile(`\n\s*\n`)
	headingRe   = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// ParseFile reads and parses path according to its extension. Unknown
// extensions are treated as plain text.
func ParseFile(path string) (Parsed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Parsed{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var parsed Parsed
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt":
		parsed = ParseVTT(string(raw))
	case ".md", ".markdown":
		parsed = ParseMarkdown(string(raw))
	default:
		parsed = ParseTxt(string(raw))
	}
	parsed.SourceFile = path
	return parsed, nil
}

// ParseVTT parses a WebVTT transcript. Cue timings and identifiers are
// dropped; speakers are collected from <v Name> voice tags and from
// "Name: text" prefixes. Content is rebuilt as "Name: text" blocks
// separated by blank lines.
func ParseVTT(content string) Parsed {
	lines := strings.Split(content, "\n")
	participants := make(map[string]struct{})
	var blocks []string

	// Everything before the WEBVTT header is ignored.
	i := 0
	for i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "WEBVTT") {
		i++
	}
	if i < len(lines) {
		i++
	}

	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if !cueTimingRe.MatchString(line) {
			i++
			continue
		}

		// Collect the cue text until a blank line or the next timing line.
		i++
		var parts []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			text := strings.TrimSpace(lines[i])
			if cueTimingRe.MatchString(text) {
				break
			}
			parts = append(parts, text)
			i++
		}

		text := strings.Join(parts, " ")
		if text == "" {
			continue
		}

		speaker := ""
		if m := voiceTagRe.FindStringSubmatch(text); m != nil {
			speaker = strings.TrimSpace(m[1])
			text = strings.TrimSpace(stripVoiceTags(text))
		} else if m := speakerRe.FindStringSubmatch(text); m != nil {
			speaker = strings.TrimSpace(m[1])
			text = strings.TrimSpace(m[2])
		}

		if speaker != "" {
			participants[speaker] = struct{}{}
			blocks = append(blocks, speaker+": "+text)
		} else {
			blocks = append(blocks, text)
		}
	}

	return Parsed{
		Content:      strings.Join(blocks, "\n\n"),
		Participants: sortedNames(participants),
	}
}

// ParseTxt parses a plain text transcript. The content is kept verbatim;
// paragraphs of the form "Name: text" contribute Name to the participant
// list when the prefix looks like a name rather than a sentence that
// happens to contain a colon.
func ParseTxt(content string) Parsed {
	trimmed := strings.TrimSpace(content)
	participants := make(map[string]struct{})

	for _, paragraph := range paragraphRe.Split(trimmed, -1) {
		text := strings.TrimSpace(paragraph)
		if text == "" {
			continue
		}
		m := speakerRe.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if len(name) < 50 && strings.Count(name, " ") <= 3 {
			participants[name] = struct{}{}
		}
	}

	return Parsed{
		Content:      trimmed,
		Participants: sortedNames(participants),
	}
}

// ParseMarkdown parses a markdown note. Frontmatter supplies project,
// topics and title; without a title key the first level-one heading is
// used. The title is folded into the topics so note headings stay
// discoverable after capture.
func ParseMarkdown(content string) Parsed {
	fm, body := parseFrontmatter(content)
	body = strings.TrimSpace(body)

	title := fm.title
	if title == "" {
		if m := headingRe.FindStringSubmatch(body); m != nil {
			title = strings.TrimSpace(m[1])
		}
	}

	topics := fm.topics
	if title != "" && !containsString(topics, title) {
		topics = append(topics, title)
	}

	return Parsed{
		Content: body,
		Title:   title,
		Project: fm.project,
		Topics:  topics,
	}
}

type frontmatter struct {
	project string
	title   string
	topics  []string
}

// parseFrontmatter splits off the optional "---" delimited header block.
// Only the flat "key: value" form is understood, which covers what notes
// vaults actually use. An unclosed block is treated as no frontmatter.
func parseFrontmatter(content string) (frontmatter, string) {
	var fm frontmatter

	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return fm, content
	}

	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closing = i
			break
		}
	}
	if closing == -1 {
		return fm, content
	}

	for _, line := range lines[1:closing] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "project":
			fm.project = unquote(strings.TrimSpace(value))
		case "title":
			fm.title = unquote(strings.TrimSpace(value))
		case "topics":
			fm.topics = parseTopics(strings.TrimSpace(value))
		}
	}

	body := strings.Join(lines[closing+1:], "\n")
	return fm, strings.TrimLeft(body, "\n")
}

// parseTopics accepts both the "[a, b]" inline list form and a bare
// string, which becomes a single-element list.
func parseTopics(value string) []string {
	if value == "" {
		return nil
	}
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		var topics []string
		for _, part := range strings.Split(value[1:len(value)-1], ",") {
			if topic := unquote(strings.TrimSpace(part)); topic != "" {
				topics = append(topics, topic)
			}
		}
		return topics
	}
	return []string{unquote(value)}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func stripVoiceTags(s string) string {
	s = voiceTagRe.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "</v>", "")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedNames(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
