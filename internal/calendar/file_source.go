package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileSource reads a hand-maintained YAML calendar:
//
//	events:
//	  - title: CPI y/y
//	    currency: USD
//	    impact: High
//	    time: 2025-03-12T08:30:00-04:00
type FileSource struct {
	Path string
}

type fileDoc struct {
	Events []fileEvent `yaml:"events"`
}

type fileEvent struct {
	Title    string `yaml:"title"`
	Currency string `yaml:"currency"`
	Impact   string `yaml:"impact"`
	Time     string `yaml:"time"`
}

func (s FileSource) Events(_ context.Context) ([]Event, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read calendar file: %w", err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode calendar file %s: %w", s.Path, err)
	}
	events := make([]Event, 0, len(doc.Events))
	for i, ev := range doc.Events {
		ts, err := time.Parse(time.RFC3339, ev.Time)
		if err != nil {
			return nil, fmt.Errorf("calendar file %s: event %d: %w", s.Path, i, err)
		}
		events = append(events, Event{Title: ev.Title, Currency: ev.Currency, Impact: ev.Impact, Time: ts})
	}
	return events, nil
}
