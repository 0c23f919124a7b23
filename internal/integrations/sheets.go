package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// SheetReader fetches tabular rows from a configured spreadsheet range.
type SheetReader interface {
	Read(ctx context.Context) ([][]string, error)
}

// SheetsConfig configures the HTTP sheet reader. The gateway exposes a
// values endpoint compatible with the Sheets v4 values.get shape.
type SheetsConfig struct {
	BaseURL string
	SheetID string
	Range   string
	APIKey  string
	Timeout time.Duration
}

// HTTPSheetReader reads a fixed sheet range through an HTTP gateway.
type HTTPSheetReader struct {
	cfg    SheetsConfig
	client *http.Client
}

var _ SheetReader = (*HTTPSheetReader)(nil)

func NewHTTPSheetReader(cfg SheetsConfig) *HTTPSheetReader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSheetReader{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type sheetValuesResponse struct {
	Range  string     `json:"range"`
	Values [][]string `json:"values"`
}

func (r *HTTPSheetReader) Read(ctx context.Context) ([][]string, error) {
	if r.cfg.BaseURL == "" || r.cfg.SheetID == "" {
		return nil, fmt.Errorf("sheet reader not configured")
	}

	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		r.cfg.BaseURL, url.PathEscape(r.cfg.SheetID), url.PathEscape(r.cfg.Range))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build sheets request: %w", err)
	}
	if r.cfg.APIKey != "" {
		q := req.URL.Query()
		q.Set("key", r.cfg.APIKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet values: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read sheets response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheets gateway returned %d", resp.StatusCode)
	}

	var parsed sheetValuesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode sheets response: %w", err)
	}
	return parsed.Values, nil
}

// StaticSheetReader returns fixed rows. Used in tests and when no sheets
// gateway is configured.
type StaticSheetReader struct {
	Rows [][]string
	Err  error
}

var _ SheetReader = (*StaticSheetReader)(nil)

func (r *StaticSheetReader) Read(context.Context) ([][]string, error) {
	return r.Rows, r.Err
}
