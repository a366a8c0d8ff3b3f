package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SanityStore talks to a Sanity-compatible HTTP document API
// (data/mutate and data/query endpoints).
type SanityStore struct {
	baseURL string
	dataset string
	token   string
	http    *http.Client
}

var _ Store = (*SanityStore)(nil)

// SanityConfig holds connection settings for NewSanityStore.
type SanityConfig struct {
	ProjectID  string
	Dataset    string
	Token      string
	APIVersion string
	// BaseURL overrides the project API host, e.g. for tests.
	BaseURL string
	Timeout time.Duration
}

// NewSanityStore creates a client for https://<project>.api.sanity.io/v<version>/data.
func NewSanityStore(cfg SanityConfig) *SanityStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-03-01"
	}
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.api.sanity.io", strings.TrimSpace(cfg.ProjectID))
	}
	base = strings.TrimRight(base, "/") + "/v" + strings.TrimPrefix(cfg.APIVersion, "v") + "/data"
	return &SanityStore{
		baseURL: base,
		dataset: cfg.Dataset,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type mutateResponse struct {
	TransactionID string `json:"transactionId"`
	Results       []struct {
		ID        string `json:"id"`
		Operation string `json:"operation"`
	} `json:"results"`
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
}

func (s *SanityStore) Create(ctx context.Context, doc Document) error {
	if err := validate(doc); err != nil {
		return err
	}
	flat, err := flatten(doc)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, map[string]any{"create": flat})
	return err
}

func (s *SanityStore) CreateIfAbsent(ctx context.Context, doc Document) (bool, error) {
	if err := validate(doc); err != nil {
		return false, err
	}
	flat, err := flatten(doc)
	if err != nil {
		return false, err
	}
	out, err := s.mutate(ctx, map[string]any{"createIfNotExists": flat})
	if err != nil {
		return false, err
	}
	for _, r := range out.Results {
		if r.ID == doc.ID && r.Operation == "create" {
			return true, nil
		}
	}
	return false, nil
}

func (s *SanityStore) Get(ctx context.Context, id string) (Document, error) {
	raw, err := s.query(ctx, `*[_id == $id][0]`, map[string]any{"id": id})
	if err != nil {
		return Document{}, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return Document{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return unflatten(raw)
}

func filterGROQ(f Filter) (string, map[string]any, error) {
	if len(f.Kinds) == 0 {
		return "", nil, errors.New("docstore: filter without kinds")
	}
	params := map[string]any{"kinds": f.Kinds}
	expr := `*[_type in $kinds`
	if f.Link != "" {
		expr += ` && link == $link`
		params["link"] = f.Link
	}
	return expr + `]`, params, nil
}

// orderGROQ renders the ordering and slice for f.
func orderGROQ(f Filter) string {
	if f.Limit <= 0 {
		return ` | order(_id asc)`
	}
	dir := "asc"
	if f.Newest {
		dir = "desc"
	}
	return fmt.Sprintf(` | order(createdAt %s, _id %s)[0...%d]`, dir, dir, f.Limit)
}

func (s *SanityStore) Query(ctx context.Context, f Filter) ([]Document, error) {
	expr, params, err := filterGROQ(f)
	if err != nil {
		return nil, err
	}
	raw, err := s.query(ctx, expr+orderGROQ(f), params)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode query result: %w", err)
	}
	out := make([]Document, 0, len(items))
	for _, it := range items {
		doc, err := unflatten(it)
		if err != nil {
			slog.Warn("docstore: skipping undecodable document", "error", err)
			continue
		}
		out = append(out, doc)
	}
	return limitDocs(out, f), nil
}

func (s *SanityStore) Count(ctx context.Context, f Filter) (int, error) {
	expr, params, err := filterGROQ(f)
	if err != nil {
		return 0, err
	}
	raw, err := s.query(ctx, `count(`+expr+`)`, params)
	if err != nil {
		return 0, err
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	return n, nil
}

func (s *SanityStore) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("docstore: empty document id")
	}
	_, err := s.mutate(ctx, map[string]any{"delete": map[string]string{"id": id}})
	return err
}

func (s *SanityStore) Ping(ctx context.Context) error {
	_, err := s.query(ctx, `count(*[_type in $kinds])`, map[string]any{"kinds": []string{KindQueue, KindPost, KindNews}})
	return err
}

func (s *SanityStore) mutate(ctx context.Context, mutation map[string]any) (mutateResponse, error) {
	var out mutateResponse
	body, err := json.Marshal(map[string]any{"mutations": []any{mutation}})
	if err != nil {
		return out, err
	}
	endpoint := fmt.Sprintf("%s/mutate/%s?returnIds=true", s.baseURL, url.PathEscape(s.dataset))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return out, ErrConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return out, fmt.Errorf("sanity mutate failed: status=%d body=%s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode mutate response: %w", err)
	}
	return out, nil
}

func (s *SanityStore) query(ctx context.Context, groq string, params map[string]any) (json.RawMessage, error) {
	q := url.Values{"query": {groq}}
	for k, v := range params {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		q.Set("$"+k, string(b))
	}
	endpoint := fmt.Sprintf("%s/query/%s?%s", s.baseURL, url.PathEscape(s.dataset), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sanity query failed: status=%d body=%s", resp.StatusCode, string(b))
	}
	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return out.Result, nil
}

// createdAtLayout has a fixed width so GROQ string ordering matches time order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// flatten merges the document payload with its system fields, which is the
// shape the HTTP API stores.
func flatten(doc Document) (map[string]any, error) {
	m := map[string]any{}
	if len(doc.Data) > 0 {
		if err := json.Unmarshal(doc.Data, &m); err != nil {
			return nil, fmt.Errorf("document %s data must be a JSON object: %w", doc.ID, err)
		}
	}
	m["_id"] = doc.ID
	m["_type"] = doc.Kind
	if doc.Link != "" {
		m["link"] = doc.Link
	}
	if !doc.CreatedAt.IsZero() {
		m["createdAt"] = doc.CreatedAt.UTC().Format(createdAtLayout)
	}
	return m, nil
}

func unflatten(raw json.RawMessage) (Document, error) {
	var meta struct {
		ID        string    `json:"_id"`
		Type      string    `json:"_type"`
		Link      string    `json:"link"`
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return Document{
		ID:        meta.ID,
		Kind:      meta.Type,
		Link:      meta.Link,
		CreatedAt: meta.CreatedAt,
		Data:      append(json.RawMessage(nil), raw...),
	}, nil
}
