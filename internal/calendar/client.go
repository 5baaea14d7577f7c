// Package calendar reads availability from Google Calendar. Auth is the
// OAuth2 refresh-token flow; a long-lived refresh token from config is
// exchanged for access tokens automatically by the oauth2 transport.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/pkg/logger"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// Event is one calendar entry after merging.
type Event struct {
	ID         string    `json:"id"`
	CalendarID string    `json:"calendar_id"`
	Title      string    `json:"title"`
	Location   string    `json:"location,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	AllDay     bool      `json:"all_day,omitempty"`
}

// Client queries one or more calendars.
type Client struct {
	calendarIDs []string
	baseURL     string
	httpClient  *http.Client
}

// NewClient builds a calendar client from config. The returned client's
// transport refreshes access tokens as needed.
func NewClient(ctx context.Context, cfg config.CalendarConfig) *Client {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.readonly"},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = cfg.Timeout()

	return &Client{
		calendarIDs: cfg.CalendarIDs,
		baseURL:     defaultBaseURL,
		httpClient:  httpClient,
	}
}

// eventsResponse mirrors the events.list payload. Start/End carry either
// dateTime (timed) or date (all-day).
type eventsResponse struct {
	Items []struct {
		ID       string `json:"id"`
		Summary  string `json:"summary"`
		Location string `json:"location"`
		Start    struct {
			DateTime string `json:"dateTime"`
			Date     string `json:"date"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
			Date     string `json:"date"`
		} `json:"end"`
	} `json:"items"`
}

func (c *Client) fetchCalendar(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	params := url.Values{}
	params.Set("timeMin", from.Format(time.RFC3339))
	params.Set("timeMax", to.Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", "50")

	reqURL := fmt.Sprintf("%s/calendars/%s/events?%s", c.baseURL, url.PathEscape(calendarID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed eventsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing events: %w", err)
	}

	events := make([]Event, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		ev := Event{
			ID:         item.ID,
			CalendarID: calendarID,
			Title:      item.Summary,
			Location:   item.Location,
		}
		if item.Start.DateTime != "" {
			ev.Start, _ = time.Parse(time.RFC3339, item.Start.DateTime)
			ev.End, _ = time.Parse(time.RFC3339, item.End.DateTime)
		} else {
			ev.AllDay = true
			ev.Start, _ = time.Parse("2006-01-02", item.Start.Date)
			ev.End, _ = time.Parse("2006-01-02", item.End.Date)
		}
		events = append(events, ev)
	}
	return events, nil
}

// EventsBetween fetches all configured calendars concurrently and merges
// the results: deduplicated by event id (shared invites show up on more
// than one calendar), sorted by start time. A calendar that fails is
// logged and skipped; the call errors only when every calendar failed.
func (c *Client) EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	if len(c.calendarIDs) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		merged   []Event
		okCount  int
		firstErr error
	)

	var wg sync.WaitGroup
	for _, id := range c.calendarIDs {
		wg.Add(1)
		go func(calendarID string) {
			defer wg.Done()
			events, err := c.fetchCalendar(ctx, calendarID, from, to)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("calendar fetch failed", "calendar_id", calendarID, "error", err.Error())
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			okCount++
			merged = append(merged, events...)
		}(id)
	}
	wg.Wait()

	if okCount == 0 && firstErr != nil {
		return nil, fmt.Errorf("all calendars failed: %w", firstErr)
	}

	seen := make(map[string]bool, len(merged))
	out := merged[:0]
	for _, ev := range merged {
		if seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true
		out = append(out, ev)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// EventsOn returns the merged events for one local day.
func (c *Client) EventsOn(ctx context.Context, day time.Time) ([]Event, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return c.EventsBetween(ctx, start, start.AddDate(0, 0, 1))
}
