package cloud

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-switchbot/internal/statuscode"
)

// Client defaults.
const (
	// DefaultBaseURL is the public SwitchBot API endpoint.
	DefaultBaseURL = "https://api.switch-bot.com"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	// maxResponseSize caps response bodies (1 MB).
	maxResponseSize = 1 << 20

	apiVersion = "/v1.1"
)

// Config holds cloud client settings.
type Config struct {
	BaseURL string
	Token   string
	Secret  string
	Timeout time.Duration
}

// Command is the body of a device command request.
type Command struct {
	Command     string `json:"command"`
	Parameter   string `json:"parameter"`
	CommandType string `json:"commandType"`
}

// Response is the envelope of every cloud reply.
type Response struct {
	HTTPStatus int             `json:"-"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
}

// BodyMap decodes the body into a generic map for the normalizers.
func (r *Response) BodyMap() (map[string]any, error) {
	if len(r.Body) == 0 || string(r.Body) == "null" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(r.Body, &m); err != nil {
		return nil, fmt.Errorf("%w: decoding body: %w", ErrTransport, err)
	}
	return m, nil
}

// DeviceInfo is one physical device from discovery.
type DeviceInfo struct {
	DeviceID           string `json:"deviceId"`
	DeviceName         string `json:"deviceName"`
	DeviceType         string `json:"deviceType"`
	EnableCloudService bool   `json:"enableCloudService"`
	HubDeviceID        string `json:"hubDeviceId"`
}

// RemoteInfo is one IR remote from discovery.
type RemoteInfo struct {
	DeviceID    string `json:"deviceId"`
	DeviceName  string `json:"deviceName"`
	RemoteType  string `json:"remoteType"`
	HubDeviceID string `json:"hubDeviceId"`
}

// DeviceList is the body of the discovery response.
type DeviceList struct {
	Devices []DeviceInfo `json:"deviceList"`
	Remotes []RemoteInfo `json:"infraredRemoteList"`
}

// Client talks to the SwitchBot cloud.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	cfg   Config
	http  *http.Client
	now   func() time.Time
	nonce func() string
}

// New creates a cloud client.
//
// Parameters:
//   - cfg: Endpoint and credentials; empty BaseURL uses DefaultBaseURL
//   - httpClient: Optional transport; nil creates one with cfg.Timeout
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:   cfg,
		http:  httpClient,
		now:   time.Now,
		nonce: uuid.NewString,
	}
}

// HasCredentials reports whether both token and secret are configured.
func (c *Client) HasCredentials() bool {
	return c != nil && c.cfg.Token != "" && c.cfg.Secret != ""
}

// Status fetches the status of one device.
func (c *Client) Status(ctx context.Context, deviceID string) (*Response, error) {
	return c.do(ctx, http.MethodGet, "/devices/"+deviceID+"/status", nil)
}

// SendCommand posts a command to one device.
func (c *Client) SendCommand(ctx context.Context, deviceID string, cmd Command) (*Response, error) {
	if cmd.CommandType == "" {
		cmd.CommandType = "command"
	}
	if cmd.Parameter == "" {
		cmd.Parameter = "default"
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding command: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/devices/"+deviceID+"/commands", body)
}

// Devices lists the account's devices and IR remotes.
func (c *Client) Devices(ctx context.Context) (*DeviceList, error) {
	resp, err := c.do(ctx, http.MethodGet, "/devices", nil)
	if err != nil {
		return nil, err
	}
	var list DeviceList
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, fmt.Errorf("%w: decoding device list: %w", ErrTransport, err)
	}
	return &list, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	if !c.HasCredentials() {
		return nil, ErrNoCredentials
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+apiVersion+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.sign(req)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	resp := &Response{HTTPStatus: httpResp.StatusCode}
	if len(data) > 0 {
		if err := json.Unmarshal(data, resp); err != nil && statuscode.Success(httpResp.StatusCode) {
			return nil, fmt.Errorf("%w: decoding response: %w", ErrTransport, err)
		}
	}

	if !statuscode.Success(resp.HTTPStatus) || !statuscode.Success(resp.StatusCode) {
		return resp, &StatusError{
			HTTPStatus: resp.HTTPStatus,
			BodyStatus: resp.StatusCode,
			Message:    resp.Message,
		}
	}
	return resp, nil
}

// sign adds the v1.1 authentication headers.
func (c *Client) sign(req *http.Request) {
	t := strconv.FormatInt(c.now().UnixMilli(), 10)
	nonce := c.nonce()

	mac := hmac.New(sha256.New, []byte(c.cfg.Secret))
	mac.Write([]byte(c.cfg.Token + t + nonce))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", c.cfg.Token)
	req.Header.Set("sign", sign)
	req.Header.Set("nonce", nonce)
	req.Header.Set("t", t)
	req.Header.Set("Content-Type", "application/json; charset=utf8")
}
