package shard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

var errNotReady = errors.New("cell not ready")

type client struct {
	endpoint string
	http     *http.Client
}

func newClient(endpoint string, hc *http.Client) client {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return client{endpoint: strings.TrimSuffix(endpoint, "/"), http: hc}
}

func (c client) Start(ctx context.Context, req StartRequest) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/start"), &buf)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body bytes.Buffer
		if _, err := body.ReadFrom(resp.Body); err != nil {
			return err
		}
		return fmt.Errorf("error calling /api/start, status code %d: %s", resp.StatusCode, strings.TrimSpace(body.String()))
	}
	return nil
}

func (c client) Status(ctx context.Context) (StatusResponse, error) {
	var status StatusResponse
	if err := c.getRequest(ctx, "/api/status", &status); err != nil {
		return StatusResponse{}, err
	}
	return status, nil
}

// Cell returns an error caused by errNotReady while the shard is still computing the cell.
func (c client) Cell(ctx context.Context, index int) (CellResponse, error) {
	var cell CellResponse
	if err := c.getRequest(ctx, fmt.Sprintf("/api/cells/%d", index), &cell); err != nil {
		return CellResponse{}, err
	}
	return cell, nil
}

func (c client) url(relativePath string) string {
	return c.endpoint + relativePath
}

func (c client) getRequest(ctx context.Context, relativeURL string, toLoad interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(relativeURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return errors.WrapfOrNil(errNotReady, "%s", relativeURL)
	default:
		return fmt.Errorf("error calling %s, status code %d: %s", relativeURL, resp.StatusCode, strings.TrimSpace(body.String()))
	}

	return json.NewDecoder(&body).Decode(toLoad)
}
