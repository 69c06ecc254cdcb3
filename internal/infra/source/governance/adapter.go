// Package governance fetches proposals from the off-chain voting hub.
// Read-through only: proposals are served to clients but never enter the
// snapshot pipeline.
package governance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"treasuryd/internal/core/domain"
)

const defaultHubURL = "https://hub.snapshot.org/graphql"

// Config holds voting hub settings.
type Config struct {
	HubURL  string        `yaml:"hub_url"`
	Space   string        `yaml:"space"`
	Timeout time.Duration `yaml:"timeout"`
}

// Adapter queries the voting hub's GraphQL endpoint.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a governance adapter.
func New(cfg Config) *Adapter {
	if cfg.HubURL == "" {
		cfg.HubURL = defaultHubURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchProposals returns the most recent proposals for the configured space.
func (a *Adapter) FetchProposals(ctx context.Context, limit int) ([]domain.Proposal, error) {
	if a.cfg.Space == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`query Proposals {
		proposals(
			first: %d,
			skip: 0,
			where: { space_in: [%q] },
			orderBy: "created",
			orderDirection: desc
		) {
			id
			title
			body
			choices
			start
			end
			state
		}
	}`, limit, a.cfg.Space)

	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.HubURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("governance hub call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("governance hub status %d: %s", resp.StatusCode, body)
	}

	var envelope struct {
		Data struct {
			Proposals []struct {
				ID      string   `json:"id"`
				Title   string   `json:"title"`
				Body    string   `json:"body"`
				Choices []string `json:"choices"`
				Start   int64    `json:"start"`
				End     int64    `json:"end"`
				State   string   `json:"state"`
			} `json:"proposals"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode governance response: %w", err)
	}

	proposals := make([]domain.Proposal, 0, len(envelope.Data.Proposals))
	for _, p := range envelope.Data.Proposals {
		proposals = append(proposals, domain.Proposal{
			ID:      p.ID,
			Title:   p.Title,
			State:   p.State,
			Start:   p.Start,
			End:     p.End,
			Link:    fmt.Sprintf("https://snapshot.org/#/%s/proposal/%s", a.cfg.Space, p.ID),
			Choices: p.Choices,
			Body:    p.Body,
		})
	}
	return proposals, nil
}
