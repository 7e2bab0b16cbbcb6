// internal/storage/rest.go
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"hr-toolkit/internal/model"
)

// RESTStore talks to a hosted Postgres-as-a-service through its PostgREST
// endpoint (/rest/v1/<table>).
type RESTStore struct {
	baseURL string
	apiKey  string
	limit   int
	client  *http.Client
}

// NewRESTStore builds a client for baseURL. The key is sent both as the
// apikey header and as a bearer token.
func NewRESTStore(baseURL, apiKey string, client *http.Client) *RESTStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		limit:   DefaultSelectLimit,
		client:  client,
	}
}

func (s *RESTStore) SetSelectLimit(n int) {
	if n > 0 {
		s.limit = n
	}
}

func (s *RESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *RESTStore) Insert(ctx context.Context, collection string, rec model.Record) (string, error) {
	if rec == nil {
		rec = model.Record{}
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode %s record: %w", collection, err)
	}
	resp, err := s.do(ctx, http.MethodPost, collection, nil, body)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(resp, "0."+IDColumn)
	if !id.Exists() {
		return "", fmt.Errorf("%s: insert response has no %s", collection, IDColumn)
	}
	return id.String(), nil
}

func (s *RESTStore) Select(ctx context.Context, collection string, filter Filter) ([]model.Record, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("limit", strconv.Itoa(s.limit))
	for k, v := range filter {
		q.Set(k, "eq."+fmt.Sprint(v))
	}
	resp, err := s.do(ctx, http.MethodGet, collection, q, nil)
	if err != nil {
		return nil, err
	}
	records := []model.Record{}
	if err := json.Unmarshal(resp, &records); err != nil {
		return nil, fmt.Errorf("%s: decode rows: %w", collection, err)
	}
	return records, nil
}

func (s *RESTStore) Update(ctx context.Context, collection, id string, patch model.Record) error {
	if len(patch) == 0 {
		return fmt.Errorf("%s: empty update", collection)
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode %s patch: %w", collection, err)
	}
	resp, err := s.do(ctx, http.MethodPatch, collection, byID(id), body)
	if err != nil {
		return err
	}
	return affected(collection, "update", resp)
}

func (s *RESTStore) Delete(ctx context.Context, collection, id string) error {
	resp, err := s.do(ctx, http.MethodDelete, collection, byID(id), nil)
	if err != nil {
		return err
	}
	return affected(collection, "delete", resp)
}

func byID(id string) url.Values {
	q := url.Values{}
	q.Set(IDColumn, "eq."+id)
	return q
}

// affected maps an empty representation to ErrNotFound.
func affected(collection, op string, resp []byte) error {
	if !gjson.ValidBytes(resp) || !gjson.GetBytes(resp, "0").Exists() {
		return fmt.Errorf("%s: %s: %w", collection, op, ErrNotFound)
	}
	return nil
}

func (s *RESTStore) do(ctx context.Context, method, collection string, query url.Values, body []byte) ([]byte, error) {
	u := s.baseURL + "/rest/v1/" + url.PathEscape(collection)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", collection, err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %s request failed: %w", collection, strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", collection, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, restRejection(collection, resp.StatusCode, data)
	}
	return data, nil
}

var quotedColumnPattern = regexp.MustCompile(`'([^']+)' column`)

// restRejection classifies a PostgREST error body.
func restRejection(collection string, status int, body []byte) error {
	code := gjson.GetBytes(body, "code").String()
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if code == "" {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return fmt.Errorf("%s: backend refused credentials (status %d): %s", collection, status, msg)
		}
		code = strconv.Itoa(status)
	}

	rej := &RejectionError{
		Collection: collection,
		Code:       code,
		Message:    msg,
		Kind:       rejectionKind(code),
	}
	if m := quotedColumnPattern.FindStringSubmatch(msg); m != nil {
		rej.Column = m[1]
	} else if m := columnPattern.FindStringSubmatch(msg); m != nil {
		rej.Column = m[1]
	}
	return rej
}

var _ CollectionStore = (*RESTStore)(nil)
