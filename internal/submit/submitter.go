package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// ErrSubmit wraps orchestrator rejections and transport failures.
var ErrSubmit = errors.New("job submission failed")

// Submitter hands a job to the orchestrator and returns the id it was
// accepted under.
type Submitter interface {
	Submit(ctx context.Context, job Job) (string, error)
}

// HTTPSubmitter POSTs jobs as JSON to an orchestrator endpoint. Connection
// errors and 5xx responses are retried.
type HTTPSubmitter struct {
	endpoint string
	client   *retryablehttp.Client
	logger   *slog.Logger
}

// NewHTTPSubmitter creates a submitter posting to endpoint.
func NewHTTPSubmitter(endpoint string, timeout time.Duration, retries int) *HTTPSubmitter {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = timeout

	return &HTTPSubmitter{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   rc,
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger for the submitter.
func (s *HTTPSubmitter) WithLogger(logger *slog.Logger) *HTTPSubmitter {
	s.logger = logger
	return s
}

// Submit posts the job. The orchestrator answers
// {"success": bool, "message": string, "result": job id}.
func (s *HTTPSubmitter) Submit(ctx context.Context, job Job) (string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSubmit, job.ID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response for %s: %v", ErrSubmit, job.ID, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: %s: status %d: %s", ErrSubmit, job.ID, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	res := gjson.ParseBytes(data)
	if ok := res.Get("success"); ok.Exists() && !ok.Bool() {
		return "", fmt.Errorf("%w: %s: %s", ErrSubmit, job.ID, res.Get("message").String())
	}
	id := res.Get("result").String()
	if id == "" {
		id = job.ID
	}

	s.logger.InfoContext(ctx, "job submitted",
		slog.String("job", job.ID),
		slog.String("orchestrator_id", id),
		slog.String("queue", job.Queue),
	)
	return id, nil
}

// LogSubmitter only logs jobs. It backs dry runs.
type LogSubmitter struct {
	Logger *slog.Logger
}

// Submit logs the job and returns its id.
func (s LogSubmitter) Submit(ctx context.Context, job Job) (string, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "dry run, job not submitted",
		slog.String("job", job.ID),
		slog.Int("track", job.Params.Track),
		slog.Int("masters", len(job.Params.MasterIDs)),
		slog.Int("slaves", len(job.Params.SlaveIDs)),
	)
	return job.ID, nil
}

// Outcome records what happened to one job.
type Outcome struct {
	JobID          string `json:"job_id"`
	OrchestratorID string `json:"orchestrator_id,omitempty"`
	Error          string `json:"error,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}

// SubmitAll submits jobs in order. Jobs repeating an earlier id hash are not
// resubmitted. Failures are recorded per job and joined into the returned
// error; later jobs are still attempted.
func SubmitAll(ctx context.Context, s Submitter, jobs []Job) ([]Outcome, error) {
	out := make([]Outcome, 0, len(jobs))
	seen := make(map[string]struct{}, len(jobs))
	var errs []error

	for _, job := range jobs {
		o := Outcome{JobID: job.ID}
		if _, dup := seen[job.IDHash]; dup {
			o.Duplicate = true
			out = append(out, o)
			continue
		}
		seen[job.IDHash] = struct{}{}

		id, err := s.Submit(ctx, job)
		if err != nil {
			o.Error = err.Error()
			errs = append(errs, err)
		} else {
			o.OrchestratorID = id
		}
		out = append(out, o)

		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	return out, errors.Join(errs...)
}
