package teams

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// First poll of a channel reaches back this far.
	defaultLookback  = 24 * time.Hour
	pollMessageLimit = 100
)

// ChannelReader is the Graph surface the poller needs.
type ChannelReader interface {
	ChannelMessages(ctx context.Context, teamID, channelID string, since time.Time, limit int) ([]Message, error)
}

// FragmentPoster captures one message batch through the API.
type FragmentPoster interface {
	PostFragment(ctx context.Context, payload FragmentPayload) (string, error)
}

// FragmentPayload mirrors the capture endpoint's request body.
type FragmentPayload struct {
	RawContent   string   `json:"raw_content"`
	SourceType   string   `json:"source_type"`
	SourceRef    string   `json:"source_ref,omitempty"`
	Project      string   `json:"project,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	Participants []string `json:"participants,omitempty"`
	CapturedAt   string   `json:"captured_at,omitempty"`
}

// MonitoredChannel is one channel the poller keeps an eye on. Project and
// Topics are stamped onto every fragment captured from it.
type MonitoredChannel struct {
	TeamID      string   `json:"team_id"`
	TeamName    string   `json:"team_name"`
	ChannelID   string   `json:"channel_id"`
	ChannelName string   `json:"channel_name"`
	Project     string   `json:"project,omitempty"`
	Topics      []string `json:"topics,omitempty"`
}

type pollerState struct {
	Channels []MonitoredChannel `json:"channels"`
	LastPoll map[string]string  `json:"last_poll"`
}

// Poller periodically fetches new messages from monitored channels and
// captures each non-empty batch as a single fragment. Channel membership
// and per-channel cursors persist in a JSON state file.
type Poller struct {
	reader    ChannelReader
	poster    FragmentPoster
	statePath string
	interval  time.Duration
	state     pollerState
}

func NewPoller(reader ChannelReader, poster FragmentPoster, statePath string, interval time.Duration) *Poller {
	p := &Poller{
		reader:    reader,
		poster:    poster,
		statePath: statePath,
		interval:  interval,
		state:     pollerState{LastPoll: make(map[string]string)},
	}
	p.loadState()
	return p
}

// Channels returns the monitored channels.
func (p *Poller) Channels() []MonitoredChannel {
	out := make([]MonitoredChannel, len(p.state.Channels))
	copy(out, p.state.Channels)
	return out
}

// AddChannel starts monitoring a channel. Adding an already monitored
// channel is a no-op.
func (p *Poller) AddChannel(ch MonitoredChannel) error {
	for _, existing := range p.state.Channels {
		if existing.ChannelID == ch.ChannelID {
			return nil
		}
	}
	p.state.Channels = append(p.state.Channels, ch)
	return p.saveState()
}

// RemoveChannel stops monitoring a channel and drops its cursor. It
// reports whether the channel was monitored.
func (p *Poller) RemoveChannel(channelID string) (bool, error) {
	for i, ch := range p.state.Channels {
		if ch.ChannelID == channelID {
			p.state.Channels = append(p.state.Channels[:i], p.state.Channels[i+1:]...)
			delete(p.state.LastPoll, channelID)
			return true, p.saveState()
		}
	}
	return false, nil
}

// PollOnce fetches new messages from every monitored channel. Failures
// on one channel are logged and do not stop the others. Returns captured
// message counts keyed by "team/channel".
func (p *Poller) PollOnce(ctx context.Context) map[string]int {
	results := make(map[string]int)
	for _, ch := range p.state.Channels {
		count, err := p.pollChannel(ctx, ch)
		if err != nil {
			log.Printf("teams: failed to poll %s/%s: %v", ch.TeamName, ch.ChannelName, err)
			continue
		}
		results[ch.TeamName+"/"+ch.ChannelName] = count
	}
	return results
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		results := p.PollOnce(ctx)
		total := 0
		for _, count := range results {
			total += count
		}
		if total > 0 {
			log.Printf("teams: captured %d message(s)", total)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) pollChannel(ctx context.Context, ch MonitoredChannel) (int, error) {
	since := p.lastPoll(ch.ChannelID)

	messages, err := p.reader.ChannelMessages(ctx, ch.TeamID, ch.ChannelID, since, pollMessageLimit)
	if err != nil {
		return 0, err
	}

	var blocks []string
	authors := make(map[string]struct{})
	latest := since
	for _, msg := range messages {
		if msg.CreatedAt.After(latest) {
			latest = msg.CreatedAt
		}
		if msg.Content == "" {
			continue
		}
		blocks = append(blocks, msg.Sender+": "+msg.Content)
		authors[msg.Sender] = struct{}{}
	}

	if len(blocks) == 0 {
		// Advance the cursor past system noise so it is not refetched.
		if latest.After(since) {
			p.state.LastPoll[ch.ChannelID] = latest.UTC().Format(time.RFC3339)
			if err := p.saveState(); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}

	payload := FragmentPayload{
		RawContent:   strings.Join(blocks, "\n\n"),
		SourceType:   "teams",
		SourceRef:    fmt.Sprintf("teams://%s/%s", ch.TeamID, ch.ChannelID),
		Project:      ch.Project,
		Topics:       ch.Topics,
		Participants: sortedAuthors(authors),
		CapturedAt:   latest.UTC().Format(time.RFC3339),
	}
	if _, err := p.poster.PostFragment(ctx, payload); err != nil {
		return 0, err
	}

	p.state.LastPoll[ch.ChannelID] = latest.UTC().Format(time.RFC3339)
	if err := p.saveState(); err != nil {
		return 0, err
	}
	return len(blocks), nil
}

func (p *Poller) lastPoll(channelID string) time.Time {
	if ts, ok := p.state.LastPoll[channelID]; ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t
		}
	}
	return time.Now().UTC().Add(-defaultLookback)
}

func (p *Poller) loadState() {
	raw, err := os.ReadFile(p.statePath)
	if err != nil {
		return
	}
	var state pollerState
	if err := json.Unmarshal(raw, &state); err != nil {
		log.Printf("teams: failed to parse poller state: %v", err)
		return
	}
	if state.LastPoll == nil {
		state.LastPoll = make(map[string]string)
	}
	p.state = state
}

func (p *Poller) saveState() error {
	raw, err := json.MarshalIndent(p.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal poller state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.statePath), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(p.statePath, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write poller state: %w", err)
	}
	return nil
}

func sortedAuthors(set map[string]struct{}) []string {
	authors := make([]string, 0, len(set))
	for author := range set {
		authors = append(authors, author)
	}
	sort.Strings(authors)
	return authors
}
