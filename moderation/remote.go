package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RemoteEngine talks to the external moderation decision service over HTTP.
// Endpoints: POST {base}/check and POST {base}/ban-status, JSON in/out.
type RemoteEngine struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ Engine = (*RemoteEngine)(nil)

func (e *RemoteEngine) http() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return &http.Client{Timeout: 5 * time.Second}
}

func (e *RemoteEngine) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("moderation service %s: %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (e *RemoteEngine) CheckText(ctx context.Context, text, userID, channel string) (Verdict, error) {
	var v Verdict
	err := e.post(ctx, "/check", map[string]string{
		"text": text, "userId": userID, "channelId": channel,
	}, &v)
	return v, err
}

func (e *RemoteEngine) CheckBanStatus(ctx context.Context, userID, channel string) (BanStatus, error) {
	var b BanStatus
	err := e.post(ctx, "/ban-status", map[string]string{
		"userId": userID, "channelId": channel,
	}, &b)
	return b, err
}

// PermissiveEngine allows everything. Used when MODERATION_URL is unset.
type PermissiveEngine struct{}

var _ Engine = PermissiveEngine{}

func (PermissiveEngine) CheckText(ctx context.Context, text, userID, channel string) (Verdict, error) {
	return Verdict{Allowed: true}, nil
}

func (PermissiveEngine) CheckBanStatus(ctx context.Context, userID, channel string) (BanStatus, error) {
	return BanStatus{}, nil
}
