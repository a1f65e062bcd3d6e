package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Message is one NTFY notification.
type Message struct {
	Title    string
	Body     string
	Priority string
	Tags     []string
}

// Send posts msg to the NTFY topic URL endpoint.
func Send(ctx context.Context, client *http.Client, endpoint string, msg Message) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("ntfy endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if msg.Priority != "" {
		req.Header.Set("Priority", msg.Priority)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
