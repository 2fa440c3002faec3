package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/idest-edu/assignment-gateway/internal/models"
	"github.com/idest-edu/assignment-gateway/internal/recorder"
	"github.com/idest-edu/assignment-gateway/internal/utils"
)

var (
	ErrNotFound    = errors.New("resource not found on backend")
	ErrUnavailable = errors.New("backend request failed")
)

// SpeakingSubmission is the multipart speaking payload: three recorded (or
// uploaded) clips, one per part.
type SpeakingSubmission struct {
	AssignmentID string
	UserID       string
	AudioOne     *recorder.Clip
	AudioTwo     *recorder.Clip
	AudioThree   *recorder.Clip
}

// Client is the boundary to the remote Idest content backend. The gateway
// conforms to its wire format and never owns it.
type Client interface {
	GetAssignment(ctx context.Context, skill models.Skill, id string) (*models.Assignment, error)
	ListAssignments(ctx context.Context, skill models.Skill, page *models.Pagination) (*Page[models.AssignmentOverview], error)
	ListMySubmissions(ctx context.Context, page *models.Pagination, skill models.Skill) (*Page[models.SubmissionOverview], error)

	SubmitObjective(ctx context.Context, skill models.Skill, sub *models.ObjectiveSubmission) (*models.SubmissionRecord, error)
	SubmitWriting(ctx context.Context, sub *models.WritingSubmission) (*models.SubmissionRecord, error)
	SubmitSpeaking(ctx context.Context, sub *SpeakingSubmission) (*models.SubmissionRecord, error)

	GetSubmissionResult(ctx context.Context, skill models.Skill, submissionID string) (*models.SubmissionResult, error)
}

// envelope is the backend's standard response wrapper. Status is kept raw
// because the backend answers with both numbers and booleans.
type envelope struct {
	Status  json.RawMessage `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// wrapped reports whether the payload is the standard envelope rather
// than a bare object that happens to carry a "data" key (the paginated
// listing shape does).
func (e *envelope) wrapped() bool {
	return len(e.Data) > 0 && (len(e.Status) > 0 || e.Message != "")
}

type HTTPClient struct {
	base   string
	http   *http.Client
	logger utils.Logger
}

func NewHTTPClient(baseURL string, httpClient *http.Client, logger utils.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{base: baseURL, http: httpClient, logger: logger}
}

func (c *HTTPClient) GetAssignment(ctx context.Context, skill models.Skill, id string) (*models.Assignment, error) {
	var assignment models.Assignment
	path := fmt.Sprintf("/%s/assignments/%s", skill, url.PathEscape(id))
	if err := c.getJSON(ctx, path, nil, &assignment); err != nil {
		return nil, err
	}
	assignment.Skill = skill
	return &assignment, nil
}

func (c *HTTPClient) ListAssignments(ctx context.Context, skill models.Skill, page *models.Pagination) (*Page[models.AssignmentOverview], error) {
	var raw json.RawMessage
	path := fmt.Sprintf("/%s/assignments", skill)
	if err := c.getJSON(ctx, path, paginationQuery(page), &raw); err != nil {
		return nil, err
	}

	result, err := DecodePage[models.AssignmentOverview](raw)
	if err != nil {
		return nil, err
	}
	for i := range result.Items {
		result.Items[i].Skill = skill
	}
	return result, nil
}

func (c *HTTPClient) ListMySubmissions(ctx context.Context, page *models.Pagination, skill models.Skill) (*Page[models.SubmissionOverview], error) {
	query := paginationQuery(page)
	if skill != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("skill", string(skill))
	}

	var raw json.RawMessage
	if err := c.getJSON(ctx, "/assignments/submissions/me", query, &raw); err != nil {
		return nil, err
	}
	return DecodePage[models.SubmissionOverview](raw)
}

func (c *HTTPClient) SubmitObjective(ctx context.Context, skill models.Skill, sub *models.ObjectiveSubmission) (*models.SubmissionRecord, error) {
	var record models.SubmissionRecord
	path := fmt.Sprintf("/%s/submissions", skill)
	if err := c.postJSON(ctx, path, sub, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *HTTPClient) SubmitWriting(ctx context.Context, sub *models.WritingSubmission) (*models.SubmissionRecord, error) {
	var record models.SubmissionRecord
	if err := c.postJSON(ctx, "/writing/submissions", sub, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *HTTPClient) SubmitSpeaking(ctx context.Context, sub *SpeakingSubmission) (*models.SubmissionRecord, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	if err := form.WriteField("assignment_id", sub.AssignmentID); err != nil {
		return nil, fmt.Errorf("failed to build multipart form: %w", err)
	}
	if err := form.WriteField("user_id", sub.UserID); err != nil {
		return nil, fmt.Errorf("failed to build multipart form: %w", err)
	}
	clips := []struct {
		field string
		clip  *recorder.Clip
	}{
		{"audioOne", sub.AudioOne},
		{"audioTwo", sub.AudioTwo},
		{"audioThree", sub.AudioThree},
	}
	for _, c := range clips {
		part, err := form.CreateFormFile(c.field, c.clip.FileName())
		if err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", c.field, err)
		}
		if _, err := part.Write(c.clip.Data); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", c.field, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/speaking/responses", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var record models.SubmissionRecord
	if err := c.do(req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *HTTPClient) GetSubmissionResult(ctx context.Context, skill models.Skill, submissionID string) (*models.SubmissionResult, error) {
	// Speaking submissions live under /responses, the rest under /submissions.
	resource := "submissions"
	if skill == models.SkillSpeaking {
		resource = "responses"
	}

	var result models.SubmissionResult
	path := fmt.Sprintf("/%s/%s/%s", skill, resource, url.PathEscape(submissionID))
	if err := c.getJSON(ctx, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ===== TRANSPORT HELPERS =====

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do executes the request and unmarshals the envelope's data field into out.
// Responses without an envelope (bare objects) are decoded directly.
func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.LogError(err, "backend request failed",
			"method", req.Method, "url", req.URL.String())
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.wrapped() {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(raw, out)
}

func paginationQuery(page *models.Pagination) url.Values {
	if page == nil {
		return nil
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page.Page))
	query.Set("limit", strconv.Itoa(page.Limit))
	return query
}
