package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/ugoku-core/internal/device"
	"github.com/nerrad567/ugoku-core/internal/retry"
	"github.com/nerrad567/ugoku-core/internal/transport"
)

// API paths used by the client.
const (
	PathDeviceInformation = "/deviceinformation"
	PathAutoPowerOff      = "/functions/autopoweroff"
	PathSettings          = "/shooting/settings"
	PathShutterButton     = "/shooting/control/shutterbutton"
)

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Doer performs a single camera request.
type Doer interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// Options configure how a Client addresses the camera API.
type Options struct {
	// APIRoot is the API prefix, "/ccapi" on current bodies.
	APIRoot string

	// APIVersion is used to build URLs before (or without) discovery.
	APIVersion string

	// DisableAutoPowerOff switches off the camera's sleep timer in Prepare.
	DisableAutoPowerOff bool
}

// DeviceInfo is the subset of /deviceinformation that is logged and exposed.
type DeviceInfo struct {
	Manufacturer    string `json:"manufacturer"`
	ProductName     string `json:"productname"`
	SerialNumber    string `json:"serialnumber"`
	FirmwareVersion string `json:"firmwareversion"`
}

// Command is a built camera request plus optional handling of its reply.
type Command struct {
	Request transport.Request
	handle  func(*transport.Response) error
}

// Client talks to one camera.
//
// Commands are built (and validated) separately from being sent, so a dry
// validation run can build every command without touching the network.
//
// Thread Safety:
//   - All methods are safe for concurrent use. The sequencer only ever has
//     one request in flight per camera.
type Client struct {
	cam    *device.Camera
	base   string
	opts   Options
	doer   Doer
	exec   *retry.Executor
	logger Logger

	mu        sync.RWMutex
	apiURLs   []string // discovered, ordered oldest to newest version
	info      DeviceInfo
	connected bool
}

// NewClient creates a client for cam. No request is made until Connect.
func NewClient(cam *device.Camera, doer Doer, exec *retry.Executor, opts Options) *Client {
	if opts.APIRoot == "" {
		opts.APIRoot = "/ccapi"
	}
	if opts.APIVersion == "" {
		opts.APIVersion = "ver100"
	}
	return &Client{
		cam:    cam,
		base:   "http://" + cam.Endpoint,
		opts:   opts,
		doer:   doer,
		exec:   exec,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Camera returns the device handle this client drives.
func (c *Client) Camera() *device.Camera {
	return c.cam
}

// Info returns the device information fetched by Connect.
func (c *Client) Info() DeviceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// APIURLs returns the discovered API URLs.
func (c *Client) APIURLs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.apiURLs...)
}

// Connect discovers the camera API, reads device information and current
// settings. It only reads from the camera.
func (c *Client) Connect(ctx context.Context) error {
	discover := Command{
		Request: transport.Request{Method: http.MethodGet, URL: c.base + c.opts.APIRoot, Idempotent: true},
		handle:  c.storeDiscovery,
	}
	if _, _, err := c.Run(ctx, discover); err != nil {
		return fmt.Errorf("camera %s: api discovery: %w", c.cam.ID, err)
	}

	infoCmd, err := c.newCommand(http.MethodGet, PathDeviceInformation, nil, true)
	if err != nil {
		return fmt.Errorf("camera %s: %w", c.cam.ID, err)
	}
	infoCmd.handle = c.storeInfo
	if _, _, err := c.Run(ctx, infoCmd); err != nil {
		return fmt.Errorf("camera %s: device information: %w", c.cam.ID, err)
	}

	refresh, err := c.RefreshSettings()
	if err != nil {
		return fmt.Errorf("camera %s: %w", c.cam.ID, err)
	}
	if _, _, err := c.Run(ctx, refresh); err != nil {
		return fmt.Errorf("camera %s: reading settings: %w", c.cam.ID, err)
	}

	info := c.Info()
	c.logger.Info("camera connected",
		"camera", c.cam.ID,
		"endpoint", c.cam.Endpoint,
		"product", info.ProductName,
		"apis", len(c.APIURLs()),
	)
	return nil
}

// Prepare applies the settings a run needs on the camera itself. Today that
// is disabling auto power off, when configured. A camera that does not
// advertise the function is logged and skipped.
func (c *Client) Prepare(ctx context.Context) error {
	if !c.opts.DisableAutoPowerOff {
		return nil
	}
	cmd, err := c.newCommand(http.MethodPut, PathAutoPowerOff, []byte(`{"value":"disable"}`), true)
	if err != nil {
		c.logger.Warn("auto power off not supported", "camera", c.cam.ID, "error", err)
		return nil
	}
	if _, _, err := c.Run(ctx, cmd); err != nil {
		return fmt.Errorf("camera %s: disabling auto power off: %w", c.cam.ID, err)
	}
	c.logger.Info("auto power off disabled", "camera", c.cam.ID)
	return nil
}

// ResolveURL maps an API path to a full URL.
//
// After discovery, a short path such as "/shooting/settings" resolves to the
// newest advertised version that ends with it, and unadvertised paths are
// rejected. Before discovery the configured version is assumed. A path that
// already starts with the API root is used as given.
func (c *Client) ResolveURL(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnsupportedPath)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == c.opts.APIRoot || strings.HasPrefix(path, c.opts.APIRoot+"/") {
		return c.base + path, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return c.base + c.opts.APIRoot + "/" + c.opts.APIVersion + path, nil
	}

	var match string
	for _, u := range c.apiURLs {
		if strings.HasSuffix(u, path) {
			match = u
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPath, path)
	}
	return match, nil
}

// Raw builds a plain HTTP request. payload must be valid JSON when present.
func (c *Client) Raw(method, path, payload string) (Command, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodPost, http.MethodPut:
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	var body []byte
	if (method == http.MethodPost || method == http.MethodPut) && strings.TrimSpace(payload) != "" {
		if !json.Valid([]byte(payload)) {
			return Command{}, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
		}
		body = []byte(payload)
	}

	// POST triggers actions (shutter, recording); the other verbs are
	// idempotent in the camera API.
	return c.newCommand(method, path, body, method != http.MethodPost)
}

// Shutter builds a shutter release. It is never repeated once written.
func (c *Client) Shutter(autofocus bool) (Command, error) {
	body, err := json.Marshal(map[string]bool{"af": autofocus})
	if err != nil {
		return Command{}, err
	}
	return c.newCommand(http.MethodPost, PathShutterButton, body, false)
}

// SetSetting builds a settings change. name is a setting name such as
// "aperture" or an API key such as "av". The value is checked against the
// cached ability list when one is known.
func (c *Client) SetSetting(name, value string) (Command, error) {
	key, ok := SettingKey(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Command{}, fmt.Errorf("%w: %s: empty value", ErrInvalidValue, key)
	}

	if s, ok := c.cam.Setting(key); ok && !s.Allows(value) {
		return Command{}, fmt.Errorf("%w: %s %q not in %v", ErrInvalidValue, key, value, s.Ability)
	}

	body, err := settingBody(key, value)
	if err != nil {
		return Command{}, err
	}
	return c.newCommand(http.MethodPut, PathSettings+"/"+key, body, true)
}

// RefreshSettings builds a settings read that replaces the cached snapshot.
func (c *Client) RefreshSettings() (Command, error) {
	cmd, err := c.newCommand(http.MethodGet, PathSettings, nil, true)
	if err != nil {
		return Command{}, err
	}
	cmd.handle = c.storeSettings
	return cmd, nil
}

// Run sends cmd through the retrying executor using the camera's tuning.
// It returns the reply, the number of attempts made, and the failure if any.
func (c *Client) Run(ctx context.Context, cmd Command) (*transport.Response, int, error) {
	policy := retry.Policy{
		Attempts: c.cam.Tuning.Attempts,
		Delay:    c.cam.Tuning.Delay,
		Timeout:  c.cam.Tuning.Timeout,
	}

	c.logger.Debug("camera request", "camera", c.cam.ID, "op", cmd.Request.Op())

	attempts := 0
	var resp *transport.Response
	err := c.exec.Do(ctx, policy, cmd.Request.Op(), func(actx context.Context) error {
		attempts++
		r, err := c.doer.Do(actx, cmd.Request)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, attempts, err
	}

	if cmd.handle != nil {
		if err := cmd.handle(resp); err != nil {
			return resp, attempts, err
		}
	}
	return resp, attempts, nil
}

func (c *Client) newCommand(method, path string, body []byte, idempotent bool) (Command, error) {
	url, err := c.ResolveURL(path)
	if err != nil {
		return Command{}, err
	}
	return Command{
		Request: transport.Request{
			Method:     method,
			URL:        url,
			Body:       body,
			Idempotent: idempotent,
		},
	}, nil
}

// storeDiscovery records the advertised API URLs, oldest version first.
func (c *Client) storeDiscovery(resp *transport.Response) error {
	var versions map[string][]struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(resp.Body, &versions); err != nil {
		return fmt.Errorf("%w: api list: %w", ErrBadResponse, err)
	}

	names := make([]string, 0, len(versions))
	for v := range versions {
		names = append(names, v)
	}
	sort.Slice(names, func(i, j int) bool { return versionLess(names[i], names[j]) })

	var urls []string
	for _, v := range names {
		for _, api := range versions[v] {
			switch {
			case api.Path != "":
				urls = append(urls, c.base+api.Path)
			case api.URL != "":
				urls = append(urls, api.URL)
			}
		}
	}

	c.mu.Lock()
	c.apiURLs = urls
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) storeInfo(resp *transport.Response) error {
	var info DeviceInfo
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return fmt.Errorf("%w: device information: %w", ErrBadResponse, err)
	}
	c.mu.Lock()
	c.info = info
	c.mu.Unlock()
	return nil
}

func (c *Client) storeSettings(resp *transport.Response) error {
	settings, err := ParseSettings(resp.Body)
	if err != nil {
		return err
	}
	c.cam.UpdateSettings(settings, time.Now())

	var auto []string
	for k, s := range settings {
		if s.IsAuto() {
			auto = append(auto, k)
		}
	}
	sort.Strings(auto)
	c.logger.Info("camera settings refreshed", "camera", c.cam.ID, "settings", len(settings), "auto", auto)
	return nil
}

// versionLess orders "ver100" before "ver110" by numeric suffix, falling
// back to string order for other names.
func versionLess(a, b string) bool {
	na, errA := strconv.Atoi(strings.TrimPrefix(a, "ver"))
	nb, errB := strconv.Atoi(strings.TrimPrefix(b, "ver"))
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
