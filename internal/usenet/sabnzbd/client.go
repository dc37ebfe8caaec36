// Package sabnzbd is the collaborator HTTP client for the external SABnzbd
// instance this gateway delegates NZB downloading and extraction to.
package sabnzbd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/streamgate/streamgate/internal/httpclient"
)

// Client handles communication with an external SABnzbd instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates a new SABnzbd client pointed at baseURL, authenticated with apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpclient.NewLong(),
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Priority constants for SABnzbd downloads.
const (
	PriorityPaused  = "-2"
	PriorityLow     = "-1"
	PriorityNormal  = "0"
	PriorityHigh    = "1"
	PriorityForce   = "2"
)

// APIResponse is the common envelope returned by addurl/queue mutation calls.
type APIResponse struct {
	Status bool     `json:"status"`
	Error  *string  `json:"error,omitempty"`
	NzoIds []string `json:"nzo_ids,omitempty"`
}

// QueueResponse represents a response from the SABnzbd queue API.
type QueueResponse struct {
	Status bool              `json:"status"`
	Error  *string           `json:"error,omitempty"`
	Queue  QueueSlotsWrapper `json:"queue,omitempty"`
}

// QueueSlotsWrapper wraps the queue slots and overall disk space figures.
type QueueSlotsWrapper struct {
	Slots      []QueueSlot `json:"slots"`
	DiskSpace1 string      `json:"diskspace1"`
	DiskSpace2 string      `json:"diskspace2"`
}

// QueueSlot represents a single queue item in SABnzbd.
type QueueSlot struct {
	NzoID      string `json:"nzo_id"`
	Name       string `json:"filename"`
	Status     string `json:"status"`
	Percentage string `json:"percentage"`
	MB         string `json:"mb"`
	MBLeft     string `json:"mbleft"`
	TimeLeft   string `json:"timeleft"`
	Priority   string `json:"priority"`
}

// FilesResponse is the response from mode=get_files for a single queue slot.
type FilesResponse struct {
	Status bool       `json:"status"`
	Error  *string    `json:"error,omitempty"`
	Files  []FileInfo `json:"files"`
}

// FileInfo describes one file inside an active download.
type FileInfo struct {
	Filename string `json:"filename"`
	MB       string `json:"mb"`
	MBLeft   string `json:"mbleft"`
}

// HistoryResponse is the response from mode=history.
type HistoryResponse struct {
	Status  bool                `json:"status"`
	Error   *string             `json:"error,omitempty"`
	History HistorySlotsWrapper `json:"history"`
}

// HistorySlotsWrapper wraps the history slots.
type HistorySlotsWrapper struct {
	Slots []HistorySlot `json:"slots"`
}

// HistorySlot represents a single completed or failed download.
type HistorySlot struct {
	NzoID       string `json:"nzo_id"`
	Name        string `json:"name"`
	Status      string `json:"status"` // "Completed" | "Failed"
	Storage     string `json:"storage"`
	FailMessage string `json:"fail_message"`
}

// ConfigResponse is the response from mode=get_config, used to read free
// disk space figures for the usenet controller's disk-space gate.
type ConfigResponse struct {
	Status bool       `json:"status"`
	Error  *string     `json:"error,omitempty"`
	Config ConfigBody `json:"config"`
}

// ConfigBody carries the misc section with disk space fields.
type ConfigBody struct {
	Misc ConfigMisc `json:"misc"`
}

// ConfigMisc holds the disk space fields reported by SABnzbd.
type ConfigMisc struct {
	DiskSpace1  string `json:"diskspace1"`
	DiskSpace2  string `json:"diskspace2"`
	CompleteDir string `json:"complete_dir"`
}

func (c *Client) apiURL(params url.Values) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid SABnzbd base URL: %w", err)
	}
	params.Set("apikey", c.apiKey)
	params.Set("output", "json")
	return fmt.Sprintf("%s/api?%s", base.String(), params.Encode()), nil
}

func (c *Client) doGet(ctx context.Context, params url.Values, out any) error {
	requestURL, err := c.apiURL(params)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request to sabnzbd: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sabnzbd returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse sabnzbd response: %w", err)
	}

	return nil
}

// AddURL submits an NZB by URL for download, returning the assigned NZO ID.
func (c *Client) AddURL(ctx context.Context, nzbURL, category, priority string) (string, error) {
	if nzbURL == "" {
		return "", fmt.Errorf("nzb url cannot be empty")
	}

	params := url.Values{}
	params.Set("mode", "addurl")
	params.Set("name", nzbURL)
	if category != "" {
		params.Set("cat", category)
	}
	if priority != "" {
		params.Set("priority", priority)
	}

	var apiResp APIResponse
	if err := c.doGet(ctx, params, &apiResp); err != nil {
		return "", err
	}
	if !apiResp.Status {
		return "", fmt.Errorf("sabnzbd addurl failed: %s", errString(apiResp.Error))
	}
	if len(apiResp.NzoIds) == 0 {
		return "", fmt.Errorf("sabnzbd did not return an nzo id")
	}

	return apiResp.NzoIds[0], nil
}

// GetQueue retrieves the current download queue.
func (c *Client) GetQueue(ctx context.Context) (*QueueSlotsWrapper, error) {
	params := url.Values{}
	params.Set("mode", "queue")

	var apiResp QueueResponse
	if err := c.doGet(ctx, params, &apiResp); err != nil {
		return nil, err
	}
	if !apiResp.Status {
		return nil, fmt.Errorf("sabnzbd queue failed: %s", errString(apiResp.Error))
	}
	return &apiResp.Queue, nil
}

// GetHistory retrieves the download history, used by the Adoption step
// (§4.6 step 2) to search for an existing entry matching a requested title.
func (c *Client) GetHistory(ctx context.Context, limit int) (*HistorySlotsWrapper, error) {
	params := url.Values{}
	params.Set("mode", "history")
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var apiResp HistoryResponse
	if err := c.doGet(ctx, params, &apiResp); err != nil {
		return nil, err
	}
	if !apiResp.Status {
		return nil, fmt.Errorf("sabnzbd history failed: %s", errString(apiResp.Error))
	}
	return &apiResp.History, nil
}

// GetFiles returns the files composing a single queue slot, used to locate
// the primary video file inside a growing download.
func (c *Client) GetFiles(ctx context.Context, nzoID string) ([]FileInfo, error) {
	params := url.Values{}
	params.Set("mode", "get_files")
	params.Set("value", nzoID)

	var apiResp FilesResponse
	if err := c.doGet(ctx, params, &apiResp); err != nil {
		return nil, err
	}
	if !apiResp.Status {
		return nil, fmt.Errorf("sabnzbd get_files failed: %s", errString(apiResp.Error))
	}
	return apiResp.Files, nil
}

// GetConfig returns SABnzbd's configuration, including free disk space.
func (c *Client) GetConfig(ctx context.Context) (*ConfigBody, error) {
	params := url.Values{}
	params.Set("mode", "get_config")
	params.Set("section", "misc")

	var apiResp ConfigResponse
	if err := c.doGet(ctx, params, &apiResp); err != nil {
		return nil, err
	}
	if !apiResp.Status {
		return nil, fmt.Errorf("sabnzbd get_config failed: %s", errString(apiResp.Error))
	}
	return &apiResp.Config, nil
}

// QueueDelete removes a queue item entirely.
func (c *Client) QueueDelete(ctx context.Context, nzoID string) error {
	return c.queueOp(ctx, "queue", "delete", nzoID)
}

// QueuePause pauses a single queue item.
func (c *Client) QueuePause(ctx context.Context, nzoID string) error {
	return c.queueOp(ctx, "queue", "pause", nzoID)
}

// QueueResume resumes a single queue item.
func (c *Client) QueueResume(ctx context.Context, nzoID string) error {
	return c.queueOp(ctx, "queue", "resume", nzoID)
}

// QueuePriority changes a queue item's priority (one of the Priority* constants).
func (c *Client) QueuePriority(ctx context.Context, nzoID, priority string) error {
	params := url.Values{}
	params.Set("mode", "queue")
	params.Set("name", "priority")
	params.Set("value", nzoID)
	params.Set("value2", priority)

	var apiResp APIResponse
	if err := c.doGet(ctx, params, &apiResp); err != nil {
		return err
	}
	if !apiResp.Status {
		return fmt.Errorf("sabnzbd priority failed: %s", errString(apiResp.Error))
	}
	return nil
}

func (c *Client) queueOp(ctx context.Context, mode, name, nzoID string) error {
	params := url.Values{}
	params.Set("mode", mode)
	params.Set("name", name)
	params.Set("value", nzoID)

	var apiResp APIResponse
	if err := c.doGet(ctx, params, &apiResp); err != nil {
		return err
	}
	if !apiResp.Status {
		return fmt.Errorf("sabnzbd %s %s failed: %s", mode, name, errString(apiResp.Error))
	}
	return nil
}

func errString(e *string) string {
	if e == nil {
		return "unknown error"
	}
	return *e
}
