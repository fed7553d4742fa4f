package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pmontanari/screenops/internal/broadcast"
	"github.com/pmontanari/screenops/internal/store"
)

// Client talks to the screenops dashboard API.
type Client struct {
	baseURL string
	hc      *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) getJSON(path string, out any) error {
	resp, err := c.hc.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) ListRuns(limit int) ([]store.Run, error) {
	var runs []store.Run
	err := c.getJSON(fmt.Sprintf("/api/runs?limit=%d", limit), &runs)
	return runs, err
}

func (c *Client) GetRun(runID int64) (*store.Run, error) {
	var run store.Run
	if err := c.getJSON(fmt.Sprintf("/api/runs/%d", runID), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) StopRun(runID int64) error {
	resp, err := c.hc.Post(fmt.Sprintf("%s/api/runs/%d/stop", c.baseURL, runID), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stop run %d: %s", runID, resp.Status)
	}
	return nil
}

// Tail opens the run's event stream and delivers its events on the
// returned channel, which is closed when the stream ends. The cancel
// function tears the connection down.
func (c *Client) Tail(runID int64) (<-chan broadcast.Event, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/runs/%d/events", c.baseURL, runID), nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	// The stream stays open for the lifetime of the run, so bypass the
	// client's request timeout.
	stream := &http.Client{}
	resp, err := stream.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("tail run %d: %s", runID, resp.Status)
	}

	ch := make(chan broadcast.Event)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		readEventStream(ctx, resp.Body, ch)
	}()

	return ch, cancel, nil
}

func readEventStream(ctx context.Context, r io.Reader, ch chan<- broadcast.Event) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, found := strings.CutPrefix(scanner.Text(), "data: ")
		if !found {
			continue
		}
		var ev broadcast.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
			return
		}
	}
}
