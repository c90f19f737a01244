package teams

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Team is a team the signed-in user belongs to.
type Team struct {
	ID          string
	Name        string
	Description string
}

// Channel is a channel within a team.
type Channel struct {
	ID          string
	Name        string
	Description string
	TeamID      string
	TeamName    string
}

// Message is a channel message with HTML bodies flattened to text.
type Message struct {
	ID        string
	Content   string
	Sender    string
	CreatedAt time.Time
	ReplyToID string
}

// GraphClient is a minimal Microsoft Graph client covering the queries
// the poller and CLI need. The http.Client is expected to carry OAuth2
// credentials, see Auth.HTTPClient.
type GraphClient struct {
	client  *http.Client
	baseURL string
}

func NewGraphClient(client *http.Client) *GraphClient {
	return &GraphClient{client: client, baseURL: graphBaseURL}
}

// ListTeams returns the teams the signed-in user has joined.
func (g *GraphClient) ListTeams(ctx context.Context) ([]Team, error) {
	var payload struct {
		Value []graphTeam `json:"value"`
	}
	if err := g.get(ctx, "/me/joinedTeams", nil, &payload); err != nil {
		return nil, err
	}

	teams := make([]Team, 0, len(payload.Value))
	for _, t := range payload.Value {
		teams = append(teams, Team{ID: t.ID, Name: t.DisplayName, Description: t.Description})
	}
	return teams, nil
}

// ListChannels returns the channels of one team.
func (g *GraphClient) ListChannels(ctx context.Context, teamID string) ([]Channel, error) {
	var team graphTeam
	if err := g.get(ctx, "/teams/"+teamID, nil, &team); err != nil {
		return nil, err
	}

	var payload struct {
		Value []graphTeam `json:"value"`
	}
	if err := g.get(ctx, "/teams/"+teamID+"/channels", nil, &payload); err != nil {
		return nil, err
	}

	channels := make([]Channel, 0, len(payload.Value))
	for _, ch := range payload.Value {
		channels = append(channels, Channel{
			ID:          ch.ID,
			Name:        ch.DisplayName,
			Description: ch.Description,
			TeamID:      teamID,
			TeamName:    team.DisplayName,
		})
	}
	return channels, nil
}

// ChannelMessages returns user messages in a channel, oldest first.
// System events (member joins and the like) are skipped. A zero since
// fetches without a time filter.
func (g *GraphClient) ChannelMessages(ctx context.Context, teamID, channelID string, since time.Time, limit int) ([]Message, error) {
	query := url.Values{}
	query.Set("$top", strconv.Itoa(limit))
	if !since.IsZero() {
		query.Set("$filter", "lastModifiedDateTime gt "+since.UTC().Format("2006-01-02T15:04:05Z"))
	}

	var payload struct {
		Value []graphMessage `json:"value"`
	}
	if err := g.get(ctx, "/teams/"+teamID+"/channels/"+channelID+"/messages", query, &payload); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(payload.Value))
	for _, m := range payload.Value {
		if m.MessageType != "message" {
			continue
		}

		content := m.Body.Content
		if m.Body.ContentType == "html" {
			content = StripHTML(content)
		}

		sender := m.From.User.DisplayName
		if sender == "" {
			sender = "Unknown"
		}

		createdAt, _ := time.Parse(time.RFC3339, m.CreatedDateTime)

		messages = append(messages, Message{
			ID:        m.ID,
			Content:   strings.TrimSpace(content),
			Sender:    sender,
			CreatedAt: createdAt,
			ReplyToID: m.ReplyToID,
		})
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (g *GraphClient) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := g.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode graph response: %w", err)
	}
	return nil
}

type graphTeam struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

type graphMessage struct {
	ID              string `json:"id"`
	MessageType     string `json:"messageType"`
	CreatedDateTime string `json:"createdDateTime"`
	ReplyToID       string `json:"replyToId"`
	From            struct {
		User struct {
			DisplayName string `json:"displayName"`
		} `json:"user"`
	} `json:"from"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// StripHTML flattens an HTML body to plain text.
func StripHTML(s string) string {
	return html.UnescapeString(htmlTagRe.ReplaceAllString(s, ""))
}
