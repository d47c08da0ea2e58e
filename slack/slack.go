// Package slack posts plan notifications to an incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"fitplanner/store"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	webhookURL string
	channel    string
	httpClient doer
}

func NewClient(webhookURL, channel string, httpClient doer) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		webhookURL: webhookURL,
		channel:    channel,
		httpClient: httpClient,
	}
}

type message struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func (c *Client) PostMessage(ctx context.Context, text string) error {
	payload, err := json.Marshal(message{Channel: c.channel, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}
	return nil
}

// NotifyPlanReady announces a newly activated plan.
func (c *Client) NotifyPlanReady(ctx context.Context, username string, p store.StoredPlan) error {
	return c.PostMessage(ctx, PlanSummary(username, p))
}

// PlanSummary renders a short mrkdwn summary of a saved plan.
func PlanSummary(username string, p store.StoredPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*New meal plan for %s* (`%s`)\n", username, p.ID)

	r := p.Bundle.Results
	if r.MealPlan != nil {
		fmt.Fprintf(&sb, "• Weekly calories: %.0f\n", r.MealPlan.TotalWeeklyCalories)
	}
	if r.HealthAnalysis != nil {
		fmt.Fprintf(&sb, "• Health score: %.0f (%s)\n", r.HealthAnalysis.HealthScore, r.HealthAnalysis.ApprovalStatus)
	}
	if r.BudgetOptimization != nil {
		bo := r.BudgetOptimization
		fmt.Fprintf(&sb, "• Groceries: $%.2f, saved $%.2f, %s budget\n", bo.TotalCost, bo.Savings, bo.BudgetStatus)
	}
	if m := p.Bundle.Metrics; m != nil {
		fmt.Fprintf(&sb, "• Generated in %.1fs", m.TotalTimeSeconds)
	}
	return strings.TrimRight(sb.String(), "\n")
}
