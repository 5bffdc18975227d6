package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/adstack-labs/fraud-oracle-go/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "fraud-oracle-client",
		Usage: "Client for the ad fraud detection oracle",
		Description: `A client for scoring ad traffic against a running oracle server.

This client can:
- Submit traffic observations for fraud scoring
- Verify fraud-score inclusion proofs against published merkle roots
- Inspect service health, model metrics, and chain connectivity`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "oracle-url",
				Usage: "Base URL of the oracle server",
				Value: "http://localhost:8000",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "HTTP request timeout",
				Value: 30 * time.Second,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "predict",
				Usage: "Score one traffic observation",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "campaign-id",
						Usage:    "Campaign identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "publisher-id",
						Usage:    "Publisher identifier",
						Required: true,
					},
					&cli.Int64Flag{
						Name:     "impressions",
						Usage:    "Impression count",
						Required: true,
					},
					&cli.Int64Flag{
						Name:     "clicks",
						Usage:    "Click count",
						Required: true,
					},
					&cli.Int64Flag{
						Name:  "session-duration",
						Usage: "Session duration in seconds",
					},
					&cli.Float64Flag{
						Name:  "bounce-rate",
						Usage: "Bounce rate (0-1)",
					},
					&cli.IntFlag{
						Name:  "time-of-day",
						Usage: "Hour of day (0-23)",
					},
					&cli.IntFlag{
						Name:  "day-of-week",
						Usage: "Day of week (0-6)",
					},
				},
				Action: predictCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify a fraud-score inclusion proof",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "leaf",
						Usage:    `Fraud score leaf, e.g. "fraud_score:0.8734"`,
						Required: true,
					},
					&cli.StringFlag{
						Name:     "proof",
						Usage:    "Comma-separated sibling hashes (hex)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "root",
						Usage:    "Expected merkle root (hex)",
						Required: true,
					},
				},
				Action: verifyCommand,
			},
			{
				Name:   "status",
				Usage:  "Show service health and chain connectivity",
				Action: statusCommand,
			},
			{
				Name:  "predictions",
				Usage: "List recent predictions",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "publisher",
						Usage: "Filter to one publisher",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of predictions",
						Value: 20,
					},
				},
				Action: predictionsCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func predictCommand(c *cli.Context) error {
	td := &types.TrafficData{
		CampaignID:      c.Int64("campaign-id"),
		PublisherID:     c.String("publisher-id"),
		Impressions:     c.Int64("impressions"),
		Clicks:          c.Int64("clicks"),
		SessionDuration: c.Int64("session-duration"),
		BounceRate:      c.Float64("bounce-rate"),
		TimeOfDay:       c.Int("time-of-day"),
		DayOfWeek:       c.Int("day-of-week"),
	}
	if err := td.Validate(); err != nil {
		return err
	}

	return doJSON(c, http.MethodPost, "/predict", td)
}

func verifyCommand(c *cli.Context) error {
	proof := strings.Split(c.String("proof"), ",")
	for i := range proof {
		proof[i] = strings.TrimSpace(proof[i])
	}

	req := &types.VerifyProofRequest{
		FraudScoreLeaf: c.String("leaf"),
		Proof:          proof,
		ExpectedRoot:   c.String("root"),
	}

	return doJSON(c, http.MethodPost, "/verify", req)
}

func statusCommand(c *cli.Context) error {
	if err := doJSON(c, http.MethodGet, "/health", nil); err != nil {
		return err
	}
	return doJSON(c, http.MethodGet, "/blockchain/status", nil)
}

func predictionsCommand(c *cli.Context) error {
	path := fmt.Sprintf("/predictions?limit=%d", c.Int("limit"))
	if publisher := c.String("publisher"); publisher != "" {
		path = fmt.Sprintf("%s&publisher_id=%s", path, publisher)
	}
	return doJSON(c, http.MethodGet, path, nil)
}

// doJSON sends a request to the oracle and pretty-prints the JSON response
func doJSON(c *cli.Context, method, path string, body interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := strings.TrimRight(c.String("oracle-url"), "/") + path
	req, err := http.NewRequestWithContext(c.Context, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: c.Duration("timeout")}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %s (%s)", method, path, resp.Status, strings.TrimSpace(string(data)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(pretty.String())

	return nil
}
