package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/daniacca/mattercore/internal/matter"
)

// CreateInstanceRequest creates a typed instance, or an empty container
// when Kind is "object" or "space". Without a Parent the instance is
// attached to the world.
type CreateInstanceRequest struct {
	Type     string         `json:"type,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Quantity *float64       `json:"quantity,omitempty"`
	State    string         `json:"state,omitempty"`
	Parent   string         `json:"parent,omitempty"`
	Position *matter.Vector `json:"position,omitempty"`
}

// AddChildRequest moves an instance under a parent.
type AddChildRequest struct {
	Child string `json:"child"`
}

// RelationResponse reports the status of an add or remove. Ref is the
// surviving child, which differs from the request after a merge.
type RelationResponse struct {
	Relation string `json:"relation"`
	Ref      string `json:"ref,omitempty"`
}

// ApplyRequest applies a named or inline change to Target.
type ApplyRequest struct {
	Target string               `json:"target"`
	Change string               `json:"change,omitempty"`
	Inline *matter.ChangeConfig `json:"inline,omitempty"`
	Vars   map[string]any       `json:"vars,omitempty"`
}

// ApplyResponse carries the outcome and the target's state afterwards. Node
// is nil when the target was depleted.
type ApplyResponse struct {
	Applied bool         `json:"applied"`
	Node    *matter.Node `json:"node,omitempty"`
}

// SatisfiesRequest evaluates a named or inline condition against Target.
type SatisfiesRequest struct {
	Target    string                  `json:"target"`
	Condition string                  `json:"condition,omitempty"`
	Inline    *matter.ConditionConfig `json:"inline,omitempty"`
	Vars      map[string]any          `json:"vars,omitempty"`
}

// SatisfiesResponse is the predicate result.
type SatisfiesResponse struct {
	Satisfied bool `json:"satisfied"`
}

// SynthesizeRequest builds a composite from the substances in Pool. The
// result is added to Parent when given, otherwise attached to the world.
type SynthesizeRequest struct {
	Pool   []string `json:"pool"`
	Parent string   `json:"parent,omitempty"`
}

// SynthesizeResponse reports the created composite.
type SynthesizeResponse struct {
	Created bool         `json:"created"`
	Node    *matter.Node `json:"node,omitempty"`
}

// RegisterNotifierRequest registers a notifier. The only type is
// "webhook", whose Config takes "url" plus optional "events" and "headers".
type RegisterNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

// NotifierInfo describes a registered notifier.
type NotifierInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Client talks to a matterd server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method string, path []string, in, out any) error {
	u, err := url.JoinPath(c.baseURL, path...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ApplyCatalog creates the world with the catalog, or replaces the catalog
// of an existing world.
func (c *Client) ApplyCatalog(ctx context.Context, worldID string, catalog *CatalogBuilder) error {
	return c.do(ctx, http.MethodPut, []string{"worlds", worldID, "catalog"}, catalog.Build(), nil)
}

// Worlds lists the world IDs.
func (c *Client) Worlds(ctx context.Context) ([]string, error) {
	var out struct {
		Worlds []string `json:"worlds"`
	}
	err := c.do(ctx, http.MethodGet, []string{"worlds"}, nil, &out)
	return out.Worlds, err
}

// DeleteWorld removes a world.
func (c *Client) DeleteWorld(ctx context.Context, worldID string) error {
	return c.do(ctx, http.MethodDelete, []string{"worlds", worldID}, nil, nil)
}

// CreateInstance creates an instance and returns its tree.
func (c *Client) CreateInstance(ctx context.Context, worldID string, req CreateInstanceRequest) (matter.Node, error) {
	var node matter.Node
	err := c.do(ctx, http.MethodPost, []string{"worlds", worldID, "instances"}, req, &node)
	return node, err
}

// Instances returns a snapshot of the world's top-level instances.
func (c *Client) Instances(ctx context.Context, worldID string) (matter.Snapshot, error) {
	var snap matter.Snapshot
	err := c.do(ctx, http.MethodGet, []string{"worlds", worldID, "instances"}, nil, &snap)
	return snap, err
}

// Instance returns the tree of one instance.
func (c *Client) Instance(ctx context.Context, worldID, ref string) (matter.Node, error) {
	var node matter.Node
	err := c.do(ctx, http.MethodGet, []string{"worlds", worldID, "instances", trimRef(ref)}, nil, &node)
	return node, err
}

// DeleteInstance destroys an instance and its subtree.
func (c *Client) DeleteInstance(ctx context.Context, worldID, ref string) error {
	return c.do(ctx, http.MethodDelete, []string{"worlds", worldID, "instances", trimRef(ref)}, nil, nil)
}

// AddChild moves child under parent.
func (c *Client) AddChild(ctx context.Context, worldID, parent, child string) (RelationResponse, error) {
	var out RelationResponse
	err := c.do(ctx, http.MethodPost, []string{"worlds", worldID, "instances", trimRef(parent), "children"},
		AddChildRequest{Child: child}, &out)
	return out, err
}

// RemoveChild detaches child from parent.
func (c *Client) RemoveChild(ctx context.Context, worldID, parent, child string) (RelationResponse, error) {
	var out RelationResponse
	err := c.do(ctx, http.MethodDelete,
		[]string{"worlds", worldID, "instances", trimRef(parent), "children", trimRef(child)}, nil, &out)
	return out, err
}

// Apply applies a change.
func (c *Client) Apply(ctx context.Context, worldID string, req ApplyRequest) (ApplyResponse, error) {
	var out ApplyResponse
	err := c.do(ctx, http.MethodPost, []string{"worlds", worldID, "apply"}, req, &out)
	return out, err
}

// Satisfies evaluates a condition.
func (c *Client) Satisfies(ctx context.Context, worldID string, req SatisfiesRequest) (bool, error) {
	var out SatisfiesResponse
	err := c.do(ctx, http.MethodPost, []string{"worlds", worldID, "satisfies"}, req, &out)
	return out.Satisfied, err
}

// Synthesize builds a composite from a pool of substances.
func (c *Client) Synthesize(ctx context.Context, worldID string, req SynthesizeRequest) (SynthesizeResponse, error) {
	var out SynthesizeResponse
	err := c.do(ctx, http.MethodPost, []string{"worlds", worldID, "synthesize"}, req, &out)
	return out, err
}

// RegisterWebhook registers a webhook receiving events of the given types,
// or every event when none are given.
func (c *Client) RegisterWebhook(ctx context.Context, id, url string, events ...matter.EventType) error {
	cfg := map[string]any{"url": url}
	if len(events) > 0 {
		names := make([]string, len(events))
		for i, e := range events {
			names[i] = string(e)
		}
		cfg["events"] = names
	}
	return c.do(ctx, http.MethodPost, []string{"notifiers"},
		RegisterNotifierRequest{Type: "webhook", ID: id, Config: cfg}, nil)
}

// Notifiers lists the registered notifiers.
func (c *Client) Notifiers(ctx context.Context) ([]NotifierInfo, error) {
	var out struct {
		Notifiers []NotifierInfo `json:"notifiers"`
	}
	err := c.do(ctx, http.MethodGet, []string{"notifiers"}, nil, &out)
	return out.Notifiers, err
}

// UnregisterNotifier removes a notifier.
func (c *Client) UnregisterNotifier(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, []string{"notifiers", id}, nil, nil)
}

// trimRef drops the leading '#', which cannot travel in a URL path.
func trimRef(ref string) string {
	return strings.TrimPrefix(ref, "#")
}
