package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BuzzLyutic/todo-board/internal/model"
)

const maxBodySize = 4 << 20

type HTTPLoader struct {
	url    string
	client *http.Client
}

func NewHTTPLoader(url string, timeout time.Duration) *HTTPLoader {
	return &HTTPLoader{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Load fetches the task feed. The body is either a JSON array of records or
// an object holding them under "todos".
func (l *HTTPLoader) Load(ctx context.Context) ([]model.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrLoad, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	records, err := decodeFeed(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return records, nil
}

func decodeFeed(body []byte) ([]model.Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var records []model.Record
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var feed struct {
		Todos *[]model.Record `json:"todos"`
	}
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, err
	}
	if feed.Todos == nil {
		return nil, fmt.Errorf("feed has no todos")
	}
	return *feed.Todos, nil
}
