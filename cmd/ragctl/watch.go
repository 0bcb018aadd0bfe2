package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/RevCBH/ragweb/internal/restapi"
	"github.com/RevCBH/ragweb/internal/tui"
)

// restFetcher implements tui.Fetcher against the client-facing REST
// surface's POST /rap/status/, the only way a watch process (which has
// no access to the Controller's in-process event bus) can learn a
// rap's current Jobs.
type restFetcher struct {
	endpoint string
	token    string
	rapID    string
	client   *http.Client
}

func (f *restFetcher) FetchJobs(ctx context.Context) ([]tui.JobView, error) {
	body, err := json.Marshal(restapi.StatusRequest{RapIDs: []string{f.rapID}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint+"/rap/status/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request failed: %s", resp.Status)
	}

	var status restapi.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	for _, id := range status.UnrecognisedRapIDs {
		if id == f.rapID {
			return nil, fmt.Errorf("rap %q not found", f.rapID)
		}
	}

	views := make([]tui.JobView, 0, len(status.Jobs))
	for _, j := range status.Jobs {
		views = append(views, tui.JobView{
			ID:         j.ID,
			RapID:      j.RapID,
			Backend:    j.Backend,
			Workspace:  j.Workspace,
			Action:     j.Action,
			State:      j.State,
			StatusCode: j.StatusCode,
			Cancelled:  j.Cancelled,
			CreatedAt:  j.CreatedAt,
			UpdatedAt:  j.UpdatedAt,
		})
	}
	return views, nil
}

func newWatchCmd() *cobra.Command {
	var endpoint, token string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <rap-id>",
		Short: "Follow a rap's Jobs live in a terminal UI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint == "" {
				return fmt.Errorf("--endpoint is required")
			}
			fetcher := &restFetcher{
				endpoint: endpoint,
				token:    token,
				rapID:    args[0],
				client:   &http.Client{Timeout: 10 * time.Second},
			}
			model := tui.NewModel(args[0], fetcher, interval)
			program := tea.NewProgram(model)
			_, err := program.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Base URL of the client REST API (required)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for the client REST API")
	cmd.Flags().DurationVar(&interval, "interval", 3*time.Second, "Polling interval")

	return cmd
}
