// Command quizwalker-mcp serves quiz walks to MCP clients over stdio by
// calling a running quizwalker-server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/quizwalker/models"
)

func main() {
	apiURL := os.Getenv("QUIZWALKER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("QUIZWALKER_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "QUIZWALKER_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"quizwalker",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	walkQuizTool := mcp.NewTool("walk_quiz",
		mcp.WithDescription("Open a quiz page in a browser, answer every question with a fixed choice, submit, and return the run report: questions seen, results summary and the page's detailed results payload."),
		mcp.WithString("quiz_url",
			mcp.Required(),
			mcp.Description("URL of the quiz page"),
		),
		mcp.WithNumber("max_iterations",
			mcp.Description("Maximum questions to walk before giving up (default: server setting, max: 1000)"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Run timeout in seconds (default: 120, max: 600)"),
		),
	)
	s.AddTool(walkQuizTool, handleWalkQuiz(apiURL, apiKey))

	getRunTool := mcp.NewTool("get_run",
		mcp.WithDescription("Fetch the status and report of a previously started quiz run."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Run id returned by walk_quiz"),
		),
	)
	s.AddTool(getRunTool, handleGetRun(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the quizwalker API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// apiGetRun fetches one run from the API.
func apiGetRun(ctx context.Context, client *http.Client, apiURL, apiKey, id string) (*models.RunStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/runs/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var status models.RunStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &status, nil
}

// pollRunCompletion polls a run until it is completed or failed, or ctx ends.
func pollRunCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, id string) (*models.RunJob, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			status, err := apiGetRun(ctx, client, apiURL, apiKey, id)
			if err != nil {
				return nil, err
			}
			if !status.Success || status.Job == nil {
				return nil, fmt.Errorf("poll failed: %s", errorText(status.Error, "run not found"))
			}
			switch status.Job.Status {
			case models.JobCompleted, models.JobFailed:
				return status.Job, nil
			}
		}
	}
}

func handleWalkQuiz(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		quizURL, err := request.RequireString("quiz_url")
		if err != nil {
			return mcp.NewToolResultError("quiz_url is required"), nil
		}

		payload := models.RunRequest{
			QuizURL:       quizURL,
			MaxIterations: request.GetInt("max_iterations", 0),
			Timeout:       request.GetInt("timeout", 0),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/runs", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run request failed: %v", err)), nil
		}

		var runResp models.RunResponse
		if err := json.Unmarshal(respBody, &runResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse run response: %v", err)), nil
		}
		if !runResp.Success || runResp.ID == "" {
			return mcp.NewToolResultError(errorText(runResp.Error, "run creation failed")), nil
		}

		job, err := pollRunCompletion(ctx, client, apiURL, apiKey, runResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling run %s failed: %v", runResp.ID, err)), nil
		}

		if job.Status == models.JobFailed {
			return mcp.NewToolResultError(formatJob(job)), nil
		}
		return mcp.NewToolResultText(formatJob(job)), nil
	}
}

func handleGetRun(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		status, err := apiGetRun(ctx, client, apiURL, apiKey, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !status.Success || status.Job == nil {
			return mcp.NewToolResultError(errorText(status.Error, "run not found")), nil
		}
		return mcp.NewToolResultText(formatJob(status.Job)), nil
	}
}

func errorText(d *models.ErrorDetail, fallback string) string {
	if d == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", d.Code, d.Message)
}

// formatJob renders a run for a model to read.
func formatJob(job *models.RunJob) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run %s: %s\nQuiz: %s\n", job.ID, job.Status, job.QuizURL))
	if job.Error != nil {
		sb.WriteString("Error: " + errorText(job.Error, "") + "\n")
	}

	r := job.Report
	if r == nil {
		return sb.String()
	}
	if r.PageTitle != "" {
		sb.WriteString("Title: " + r.PageTitle + "\n")
	}
	sb.WriteString(fmt.Sprintf("Outcome: %s (%d questions, %d screenshots, %dms)\n", r.Status, len(r.Questions), len(r.Screenshots), r.DurationMs))

	if len(r.Questions) > 0 {
		sb.WriteString("\nQuestions:\n")
		for _, q := range r.Questions {
			choice := ""
			if q.SelectedIndex >= 0 && q.SelectedIndex < len(q.Observation.Options) {
				choice = q.Observation.Options[q.SelectedIndex]
			}
			sb.WriteString(fmt.Sprintf("%d. %s\n   chose: %s (then %s)\n", q.Iteration, q.Observation.Text, choice, q.Advance))
		}
	}
	if r.Summary != "" {
		sb.WriteString("\nSummary:\n" + r.Summary + "\n")
	}
	if r.DetailedResults != "" {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, []byte(r.DetailedResults), "", "  "); err != nil {
			pretty.Reset()
			pretty.WriteString(r.DetailedResults)
		}
		sb.WriteString("\nDetailed results:\n" + pretty.String() + "\n")
	}
	return sb.String()
}
