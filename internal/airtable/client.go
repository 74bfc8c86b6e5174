package airtable

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

type recordsRequest struct {
	Records  []recordFields `json:"records"`
	Typecast bool           `json:"typecast"`
}

type recordFields struct {
	ID     string `json:"id,omitempty"`
	Fields Fields `json:"fields"`
}

type recordsResponse struct {
	Records []struct {
		ID string `json:"id"`
	} `json:"records"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ RecordStore = (*Client)(nil)

// Client reads and writes records in one table of an Airtable base.
type Client struct {
	client   *resty.Client
	endpoint string
}

func NewClient(apiURL, apiKey, baseID, table string) (*Client, error) {
	client := resty.New()
	client.SetTimeout(defaultTimeout)
	client.SetRetryCount(0)

	return NewClientWithResty(apiURL, apiKey, baseID, table, client)
}

func NewClientWithResty(apiURL, apiKey, baseID, table string, client *resty.Client) (*Client, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if trimmedURL == "" {
		return nil, fmt.Errorf("airtable api url is required")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid airtable api url: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("airtable api key is required")
	}
	if strings.TrimSpace(baseID) == "" {
		return nil, fmt.Errorf("airtable base id is required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("airtable table is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultTimeout)
	}
	client.SetRetryCount(0)
	client.SetAuthToken(strings.TrimSpace(apiKey))

	return &Client{
		client:   client,
		endpoint: fmt.Sprintf("%s/%s/%s", trimmedURL, url.PathEscape(baseID), url.PathEscape(table)),
	}, nil
}

// CreateRecord creates one row and returns its Airtable record id.
func (c *Client) CreateRecord(ctx context.Context, fields Fields) (string, error) {
	if len(fields) == 0 {
		return "", &RequestError{Message: "record has no fields"}
	}

	records, err := c.send(ctx, http.MethodPost, recordsRequest{
		Records:  []recordFields{{Fields: fields}},
		Typecast: true,
	}, nil)
	if err != nil {
		return "", err
	}
	return firstRecordID(records)
}

// UpdateRecord overwrites the given columns of an existing row. Columns not in
// fields keep their Airtable value.
func (c *Client) UpdateRecord(ctx context.Context, recordID string, fields Fields) error {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return &RequestError{Message: "record id is required"}
	}
	if len(fields) == 0 {
		return &RequestError{Message: "record has no fields"}
	}

	records, err := c.send(ctx, http.MethodPatch, recordsRequest{
		Records:  []recordFields{{ID: recordID, Fields: fields}},
		Typecast: true,
	}, nil)
	if err != nil {
		return err
	}

	updatedID, err := firstRecordID(records)
	if err != nil {
		return err
	}
	if updatedID != recordID {
		return &RequestError{Message: fmt.Sprintf("airtable updated record %q, want %q", updatedID, recordID)}
	}
	return nil
}

// FindRecordID returns the id of the first row whose column equals value.
func (c *Client) FindRecordID(ctx context.Context, column string, value string) (string, bool, error) {
	if strings.TrimSpace(column) == "" {
		return "", false, &RequestError{Message: "column is required"}
	}

	records, err := c.send(ctx, http.MethodGet, nil, map[string]string{
		"filterByFormula": EqualsFormula(column, value),
		"maxRecords":      "1",
		"pageSize":        "1",
	})
	if err != nil {
		return "", false, err
	}
	if len(records.Records) == 0 {
		return "", false, nil
	}

	id := strings.TrimSpace(records.Records[0].ID)
	return id, id != "", nil
}

// EqualsFormula builds a filterByFormula expression matching column against a
// literal string.
func EqualsFormula(column string, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return fmt.Sprintf("{%s}='%s'", column, escaped)
}

func (c *Client) send(ctx context.Context, method string, body any, query map[string]string) (*recordsResponse, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("airtable client is not initialized")
	}

	var result recordsResponse
	var failed errorResponse
	request := c.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&failed)
	if body != nil {
		request.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if len(query) > 0 {
		request.SetQueryParams(query)
	}

	response, err := request.Execute(method, c.endpoint)
	if err != nil {
		return nil, &RequestError{
			Message:   "airtable request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &RequestError{
			Message:   "airtable returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &result, nil
	}

	message := strings.TrimSpace(failed.Error.Message)
	if message == "" {
		message = strings.TrimSpace(response.String())
	}

	return nil, &RequestError{
		StatusCode: statusCode,
		Type:       failed.Error.Type,
		Message:    message,
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func firstRecordID(records *recordsResponse) (string, error) {
	if records == nil || len(records.Records) == 0 || strings.TrimSpace(records.Records[0].ID) == "" {
		return "", &RequestError{Message: "airtable response has no record id"}
	}
	return records.Records[0].ID, nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
