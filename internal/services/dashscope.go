package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/validation"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	asyncHeader    = "X-DashScope-Async"
)

// DashScopeService talks to the DashScope image-synthesis API.
//
// It holds no per-task state and is safe for concurrent use.
type DashScopeService struct {
	cfg        shared.ProviderConfig
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

type synthesisRequest struct {
	Model      string          `json:"model"`
	Input      synthesisInput  `json:"input"`
	Parameters synthesisParams `json:"parameters"`
}

type synthesisInput struct {
	Function     string `json:"function,omitempty"`
	Prompt       string `json:"prompt"`
	BaseImageURL string `json:"base_image_url,omitempty"`
}

type synthesisParams struct {
	N    int    `json:"n"`
	Size string `json:"size,omitempty"`
}

type taskEnvelope struct {
	RequestID string     `json:"request_id"`
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Output    taskOutput `json:"output"`
}

type taskOutput struct {
	TaskID     string       `json:"task_id"`
	TaskStatus string       `json:"task_status"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Results    []taskResult `json:"results"`
}

type taskResult struct {
	URL string `json:"url"`
}

func (o taskOutput) urls() []string {
	var urls []string
	for _, r := range o.Results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// NewDashScopeService creates a provider client.
//
// The credential is attached by an [oauth2.Transport] wrapping base, which defaults to [http.DefaultClient].
func NewDashScopeService(cfg shared.ProviderConfig, base *http.Client, logger *log.Logger) *DashScopeService {
	if base == nil {
		base = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.OutputNum <= 0 {
		cfg.OutputNum = 1
	}

	client := base
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: key, TokenType: "Bearer"}))
		client.Timeout = base.Timeout
	}

	return &DashScopeService{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
		logger:     shared.WithLogger(logger, "service", "dashscope"),
	}
}

// Configured implements [TaskClient].
func (s *DashScopeService) Configured() bool {
	return strings.TrimSpace(s.cfg.APIKey) != ""
}

// CreateTask implements [TaskClient].
func (s *DashScopeService) CreateTask(ctx context.Context, req models.GenerationRequest) (*models.Submission, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("%w: set %s", shared.ErrMissingCredentials, s.credentialName())
	}

	endpoint, payload := s.buildRequest(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(asyncHeader, "enable")

	status, raw, err := s.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTaskCreation, err)
	}

	if status < 200 || status > 299 {
		apiErr := &APIError{StatusCode: status}
		var env taskEnvelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Code, apiErr.Message = env.Code, env.Message
		}
		s.logger.Error("task creation rejected", "status", status, "code", apiErr.Code, "message", apiErr.Message)
		return nil, fmt.Errorf("%w: %w", shared.ErrTaskCreation, apiErr)
	}

	env, err := s.decode(validation.TaskCreated, raw)
	if err != nil {
		return nil, err
	}

	if urls := env.Output.urls(); len(urls) > 0 {
		s.logger.Debug("task completed synchronously", "results", len(urls))
		return &models.Submission{ResultURLs: urls}, nil
	}
	if env.Output.TaskID != "" {
		s.logger.Debug("task created", "task_id", env.Output.TaskID, "request_id", env.RequestID)
		return &models.Submission{TaskID: env.Output.TaskID}, nil
	}

	s.logger.Error("creation response has neither task id nor results", "body", string(raw))
	return nil, fmt.Errorf("%w: no task_id or results", shared.ErrMalformedResponse)
}

// GetTask implements [TaskClient].
//
// Transport failures, non-2xx responses and undecodable bodies are wrapped with [shared.ErrTransientNetwork].
func (s *DashScopeService) GetTask(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("%w: set %s", shared.ErrMissingCredentials, s.credentialName())
	}
	if taskID == "" {
		return nil, fmt.Errorf("%w: task id", shared.ErrMissingArgument)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/tasks/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	status, raw, err := s.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTransientNetwork, err)
	}
	if status < 200 || status > 299 {
		var env taskEnvelope
		_ = json.Unmarshal(raw, &env)
		return nil, fmt.Errorf("%w: %w", shared.ErrTransientNetwork, &APIError{StatusCode: status, Code: env.Code, Message: env.Message})
	}

	env, err := s.decode(validation.TaskStatus, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrTransientNetwork, err)
	}

	id := env.Output.TaskID
	if id == "" {
		id = taskID
	}
	return &models.TaskStatus{
		TaskID:     id,
		State:      models.ParseTaskState(env.Output.TaskStatus),
		Raw:        env.Output.TaskStatus,
		ResultURLs: env.Output.urls(),
		Code:       env.Output.Code,
		Message:    env.Output.Message,
	}, nil
}

// Query performs a single status check outside of a polling loop.
func (s *DashScopeService) Query(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	return s.GetTask(ctx, taskID)
}

func (s *DashScopeService) buildRequest(req models.GenerationRequest) (string, synthesisRequest) {
	n := req.OutputNum
	if n <= 0 {
		n = s.cfg.OutputNum
	}

	if req.Mode == models.ModeText {
		size := req.Size
		if size == "" {
			size = s.cfg.T2ISize
		}
		return s.baseURL + "/services/aigc/text2image/image-synthesis", synthesisRequest{
			Model:      s.cfg.T2IModel,
			Input:      synthesisInput{Prompt: req.Prompt},
			Parameters: synthesisParams{N: n, Size: size},
		}
	}

	fn := req.Function
	if fn == "" {
		fn = s.cfg.EditFunction
	}
	return s.baseURL + "/services/aigc/image2image/image-synthesis", synthesisRequest{
		Model:      s.cfg.EditModel,
		Input:      synthesisInput{Function: fn, Prompt: req.Prompt, BaseImageURL: req.ImageURL},
		Parameters: synthesisParams{N: n},
	}
}

// do sends req and returns the status code and body.
func (s *DashScopeService) do(req *http.Request) (int, []byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// decode validates raw against env's schema and unmarshals it.
func (s *DashScopeService) decode(env validation.Envelope, raw []byte) (*taskEnvelope, error) {
	if err := validation.Validate(env, raw); err != nil {
		s.logger.Error("malformed provider response", "envelope", env, "err", err, "body", string(raw))
		return nil, fmt.Errorf("%w: %w", shared.ErrMalformedResponse, err)
	}

	var out taskEnvelope
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Error("undecodable provider response", "err", err, "body", string(raw))
		return nil, fmt.Errorf("%w: %w", shared.ErrMalformedResponse, err)
	}
	return &out, nil
}

func (s *DashScopeService) credentialName() string {
	if s.cfg.APIKeyEnv != "" {
		return s.cfg.APIKeyEnv
	}
	return "provider.api_key"
}
