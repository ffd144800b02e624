// Package dataset loads dosing histories and lab results from files or HTTP endpoints
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mrcode/hrt-tracker/internal/models"
)

// Errors returned while loading a dataset
var (
	ErrNoLocation       = errors.New("no dataset location configured")
	ErrInvalidDataset   = errors.New("invalid dataset")
	ErrUnsupportedInput = errors.New("unsupported dataset format")
)

// Dataset is one subject's dosing history and lab results
type Dataset struct {
	BodyWeightKG float64                 `json:"bodyWeightKG,omitempty" yaml:"bodyWeightKG,omitempty"`
	Events       []models.DoseEvent      `json:"events" yaml:"events"`
	Measurements []models.LabMeasurement `json:"measurements" yaml:"measurements"`
}

// Validate checks the body weight, every event, and every measurement
func (d *Dataset) Validate() error {
	if math.IsNaN(d.BodyWeightKG) || d.BodyWeightKG <= 0 {
		return fmt.Errorf("%w: body weight must be positive, got %v", ErrInvalidDataset, d.BodyWeightKG)
	}
	for _, e := range d.Events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: event %q: %v", ErrInvalidDataset, e.ID, err)
		}
	}
	for _, m := range d.Measurements {
		if math.IsNaN(m.TimeH) || math.IsInf(m.TimeH, 0) {
			return fmt.Errorf("%w: measurement %q: time must be finite", ErrInvalidDataset, m.ID)
		}
		if math.IsNaN(m.ConcPGmL) || math.IsInf(m.ConcPGmL, 0) || m.ConcPGmL < 0 {
			return fmt.Errorf("%w: measurement %q: concentration must be a finite non-negative number", ErrInvalidDataset, m.ID)
		}
	}
	return nil
}

// fillIDs assigns a random ID to every event and measurement without one
func (d *Dataset) fillIDs() {
	for i := range d.Events {
		if d.Events[i].ID == "" {
			d.Events[i].ID = uuid.NewString()
		}
	}
	for i := range d.Measurements {
		if d.Measurements[i].ID == "" {
			d.Measurements[i].ID = uuid.NewString()
		}
	}
}

// Client loads datasets from local files or HTTP endpoints
type Client struct {
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a new dataset client
func NewClient(apiToken string) *Client {
	return &Client{
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch loads the dataset at location, an http(s) URL or a file path
func (c *Client) Fetch(ctx context.Context, location string) (*Dataset, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrNoLocation
	}

	if isRemote(location) {
		body, err := c.fetchRemote(ctx, location)
		if err != nil {
			return nil, err
		}
		return Decode(body, formatJSON)
	}

	body, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	return Decode(body, formatFromPath(location))
}

// Dataset encodings
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// Decode parses a dataset in the given format ("json" or "yaml") and fills
// in missing IDs
func Decode(data []byte, format string) (*Dataset, error) {
	var ds Dataset
	switch format {
	case formatJSON:
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, fmt.Errorf("parsing dataset: %w", err)
		}
	case formatYAML:
		if err := yaml.Unmarshal(data, &ds); err != nil {
			return nil, fmt.Errorf("parsing dataset: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedInput, format)
	}
	ds.fillIDs()
	return &ds, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

func (c *Client) fetchRemote(ctx context.Context, location string) ([]byte, error) {
	req, err := c.buildRequest(ctx, location)
	if err != nil {
		return nil, err
	}
	return c.doRequest(req)
}

// buildRequest creates an HTTP request with proper authentication
func (c *Client) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	return req, nil
}

// doRequest executes an HTTP request and returns the response body
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
