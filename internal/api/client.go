package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/XiaoYouChR/Ghost-Downloader-Browser-Extension/internal/domain"
)

const apiPrefix = "/api/v1"

// Config carries everything a Client needs at construction time. The base URL
// is fixed for the lifetime of a Client; when the user changes the server
// address, the agent builds a fresh Client instead of mutating this one.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// Client talks to the Ghost Downloader server's REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpClient,
		logger:  logger,
	}
}

// BaseURL returns the server address this client was built for.
func (c *Client) BaseURL() string { return c.baseURL }

// do performs one request against {baseURL}/api/v1{endpoint} and decodes the
// JSON response into out when out is non-nil. 202/204 responses and empty
// bodies leave out untouched. Non-2xx responses become an error carrying the
// server-supplied detail message; transport failures become a single
// normalized error naming the configured server address.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any, headers map[string]string) error {
	reqURL := c.baseURL + apiPrefix + endpoint
	c.logger.Debugf("api request: %s %s", method, reqURL)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Errorf("api request failed for %s: %v", reqURL, err)
		return fmt.Errorf("failed to communicate with the server, please ensure it is running at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Errorf("api request failed for %s: %v", reqURL, err)
		return fmt.Errorf("failed to communicate with the server, please ensure it is running at %s: %w", c.baseURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := extractDetail(data)
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		c.logger.Errorf("api error %d for %s: %s", resp.StatusCode, reqURL, detail)
		return errors.New(detail)
	}

	// 202/204 signal success with a possibly empty body.
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", reqURL, err)
	}
	return nil
}

func extractDetail(data []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.Detail
}

// ── Task API ─────────────────────────────────────────────────────────────────

func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &tasks, nil); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTaskDetails(ctx context.Context, taskID string) (map[string]any, error) {
	var details map[string]any
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &details, nil); err != nil {
		return nil, err
	}
	return details, nil
}

type createTaskRequest struct {
	URL             string         `json:"url"`
	ConfigOverrides map[string]any `json:"configOverrides"`
}

func (c *Client) CreateTask(ctx context.Context, downloadURL string, configOverrides map[string]any) (*domain.Task, error) {
	if configOverrides == nil {
		configOverrides = map[string]any{}
	}
	var task domain.Task
	req := createTaskRequest{URL: downloadURL, ConfigOverrides: configOverrides}
	if err := c.do(ctx, http.MethodPost, "/tasks/url", req, &task, nil); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) PauseTask(ctx context.Context, taskID string) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/pause", nil, &task, nil); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) ResumeTask(ctx context.Context, taskID string) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/resume", nil, &task, nil); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask deletes a task. The server answers 202/204 with no body; cleanup
// tells it whether to also remove on-disk artifacts.
func (c *Client) CancelTask(ctx context.Context, taskID string, cleanup bool) error {
	endpoint := fmt.Sprintf("/tasks/%s?cleanup=%t", url.PathEscape(taskID), cleanup)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil, nil)
}

type updateTaskConfigRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (c *Client) UpdateTaskConfig(ctx context.Context, taskID, key string, value any) error {
	req := updateTaskConfigRequest{Key: key, Value: value}
	return c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(taskID)+"/config", req, nil, nil)
}

// ── Config API ───────────────────────────────────────────────────────────────

func (c *Client) GetConfigSchema(ctx context.Context) ([]domain.ConfigField, error) {
	var schema []domain.ConfigField
	if err := c.do(ctx, http.MethodGet, "/config/schema", nil, &schema, nil); err != nil {
		return nil, err
	}
	return schema, nil
}

func (c *Client) GetGlobalValues(ctx context.Context) (map[string]any, error) {
	var values map[string]any
	if err := c.do(ctx, http.MethodGet, "/config/values", nil, &values, nil); err != nil {
		return nil, err
	}
	return values, nil
}

type updateGlobalValuesRequest struct {
	Settings map[string]any `json:"settings"`
}

func (c *Client) UpdateGlobalValues(ctx context.Context, settings map[string]any) (map[string]any, error) {
	var values map[string]any
	req := updateGlobalValuesRequest{Settings: settings}
	if err := c.do(ctx, http.MethodPut, "/config/values", req, &values, nil); err != nil {
		return nil, err
	}
	return values, nil
}

// ── Plugin API ───────────────────────────────────────────────────────────────

func (c *Client) GetInstalledPlugins(ctx context.Context) ([]map[string]any, error) {
	var plugins []map[string]any
	if err := c.do(ctx, http.MethodGet, "/plugins", nil, &plugins, nil); err != nil {
		return nil, err
	}
	return plugins, nil
}

func (c *Client) ReloadPlugins(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/plugins/reload", nil, nil, nil)
}

// ── Injector API ─────────────────────────────────────────────────────────────

type injectorScriptResponse struct {
	Script string `json:"script"`
}

// GetInjectorScript asks the server for a script to inject into the page at
// pageURL. An empty result means nothing should be injected.
func (c *Client) GetInjectorScript(ctx context.Context, pageURL string) (string, error) {
	var resp injectorScriptResponse
	endpoint := "/injector/script?url=" + url.QueryEscape(pageURL)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp, nil); err != nil {
		return "", err
	}
	return resp.Script, nil
}
