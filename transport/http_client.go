// Package transport implements the HOST-facing control channel (REST-like
// request/response) and event stream (WebSocket-like) that the rig package
// depends on only through its Transport and EventSource interfaces (§6).
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient is a rig.Transport implementation over the HOST's REST-like
// control channel. There is no third-party HTTP client in the retrieved
// example pack, so this stays on net/http — the one ambient concern the
// module deliberately does not import a library for.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a control-channel client against baseURL (§6
// "server.url"). timeout bounds every individual request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type addPluginRequest struct {
	URI string `json:"uri"`
}

type addPluginResponse struct {
	Label string `json:"label"`
}

func (c *HTTPClient) AddPlugin(ctx context.Context, uri string) (string, error) {
	var resp addPluginResponse
	if err := c.postJSON(ctx, "/plugins", addPluginRequest{URI: uri}, &resp); err != nil {
		return "", err
	}
	return resp.Label, nil
}

func (c *HTTPClient) RemovePlugin(ctx context.Context, label string) error {
	return c.do(ctx, http.MethodDelete, "/plugins/"+url.PathEscape(label), nil, nil)
}

type connectRequest struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

func (c *HTTPClient) Connect(ctx context.Context, srcPort, dstPort string) error {
	return c.postJSON(ctx, "/connections", connectRequest{Src: srcPort, Dst: dstPort}, nil)
}

func (c *HTTPClient) Disconnect(ctx context.Context, srcPort, dstPort string) error {
	return c.do(ctx, http.MethodDelete, "/connections", connectRequest{Src: srcPort, Dst: dstPort}, nil)
}

type setParamRequest struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

func (c *HTTPClient) SetParam(ctx context.Context, label, symbol string, value float64) error {
	return c.postJSON(ctx, "/plugins/"+url.PathEscape(label)+"/params", setParamRequest{Symbol: symbol, Value: value}, nil)
}

type setBypassRequest struct {
	Bypassed bool `json:"bypassed"`
}

func (c *HTTPClient) SetBypass(ctx context.Context, label string, bypassed bool) error {
	return c.postJSON(ctx, "/plugins/"+url.PathEscape(label)+"/bypass", setBypassRequest{Bypassed: bypassed}, nil)
}

type hardwarePortsResponse struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

func (c *HTTPClient) ListHardwarePorts(ctx context.Context) ([]string, []string, error) {
	var resp hardwarePortsResponse
	if err := c.do(ctx, http.MethodGet, "/hardware", nil, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Inputs, resp.Outputs, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("transport: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("transport: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("transport: %s %s: HOST returned %s", method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("transport: decode response: %w", err)
		}
	}
	return nil
}
