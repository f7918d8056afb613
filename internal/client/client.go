package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hrms/internal/apperror"
	"hrms/internal/attendance"
	"hrms/internal/revision"
)

// Client calls the HRMS API. Every failure it returns carries an apperror
// kind, taken from the response body when the server sent one.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with a request timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type errorBody struct {
	Kind  apperror.Kind `json:"kind"`
	Error string        `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

func (c *Client) AddEmployee(ctx context.Context, input attendance.NewEmployee) (attendance.Employee, error) {
	var out attendance.Employee
	err := c.do(ctx, http.MethodPost, "/v1/employees", nil, input, &out)
	return out, err
}

func (c *Client) ListEmployees(ctx context.Context) ([]attendance.EmployeeSummary, error) {
	var out []attendance.EmployeeSummary
	if err := c.do(ctx, http.MethodGet, "/v1/employees", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetEmployee(ctx context.Context, employeeID string) (attendance.EmployeeSummary, error) {
	var out attendance.EmployeeSummary
	err := c.do(ctx, http.MethodGet, "/v1/employees/"+url.PathEscape(employeeID), nil, nil, &out)
	return out, err
}

// DeleteEmployee returns the server's confirmation message.
func (c *Client) DeleteEmployee(ctx context.Context, employeeID string) (string, error) {
	var out messageBody
	err := c.do(ctx, http.MethodDelete, "/v1/employees/"+url.PathEscape(employeeID), nil, nil, &out)
	return out.Message, err
}

func (c *Client) MarkAttendance(ctx context.Context, input attendance.NewAttendance) (attendance.AttendanceRecord, error) {
	var out attendance.AttendanceRecord
	err := c.do(ctx, http.MethodPost, "/v1/attendance", nil, input, &out)
	return out, err
}

func (c *Client) DeleteAttendance(ctx context.Context, id string) (string, error) {
	var out messageBody
	err := c.do(ctx, http.MethodDelete, "/v1/attendance/"+url.PathEscape(id), nil, nil, &out)
	return out.Message, err
}

func (c *Client) ListAttendance(ctx context.Context, employeeID string, filter attendance.Filter) ([]attendance.AttendanceRecord, error) {
	query := url.Values{}
	if filter.FromDate != "" {
		query.Set("from_date", filter.FromDate)
	}
	if filter.ToDate != "" {
		query.Set("to_date", filter.ToDate)
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}

	var out []attendance.AttendanceRecord
	path := "/v1/employees/" + url.PathEscape(employeeID) + "/attendance"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Dashboard(ctx context.Context) (attendance.DashboardStats, error) {
	var out attendance.DashboardStats
	err := c.do(ctx, http.MethodGet, "/v1/dashboard", nil, nil, &out)
	return out, err
}

func (c *Client) Revisions(ctx context.Context) (revision.Revisions, error) {
	var out revision.Revisions
	err := c.do(ctx, http.MethodGet, "/v1/revisions", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return apperror.Wrap(apperror.KindInternal, "encode request", err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return apperror.Wrap(apperror.KindStoreUnavailable, "service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Wrap(apperror.KindInternal, "failed to decode response", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = fmt.Sprintf("service error %s", resp.Status)
	}

	kind := body.Kind
	switch kind {
	case apperror.KindValidation, apperror.KindNotFound, apperror.KindConflict,
		apperror.KindStoreUnavailable, apperror.KindInternal:
	default:
		kind = kindForStatus(resp.StatusCode)
	}
	return apperror.New(kind, body.Error)
}

func kindForStatus(status int) apperror.Kind {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperror.KindValidation
	case status == http.StatusNotFound:
		return apperror.KindNotFound
	case status == http.StatusConflict:
		return apperror.KindConflict
	case status == http.StatusTooManyRequests || status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		return apperror.KindStoreUnavailable
	}
	return apperror.KindInternal
}
