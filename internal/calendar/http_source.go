package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// HTTPSource reads a ForexFactory-style JSON export: an array of objects
// with title, country, impact and an RFC3339 date.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSource) Events(ctx context.Context) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch calendar: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	return ParseJSON(body)
}

// ParseJSON decodes the calendar array. Rows without a parseable date are
// skipped; a body that is not a JSON array is an error.
func ParseJSON(body []byte) ([]Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("calendar: invalid json")
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("calendar: root must be an array")
	}

	var events []Event
	parsed.ForEach(func(_, row gjson.Result) bool {
		raw := row.Get("date").String()
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			slog.Debug("calendar row skipped", "title", row.Get("title").String(), "date", raw)
			return true
		}
		currency := row.Get("country").String()
		if currency == "" {
			currency = row.Get("currency").String()
		}
		events = append(events, Event{
			Title:    row.Get("title").String(),
			Currency: currency,
			Impact:   row.Get("impact").String(),
			Time:     ts,
		})
		return true
	})
	return events, nil
}
