package didx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxDocumentSize = 1 << 20

// WebMethod resolves did:web identifiers by fetching did.json over HTTPS.
type WebMethod struct {
	Client *http.Client

	// Insecure fetches over plain HTTP. Only meant for local setups and tests.
	Insecure bool
}

// NewWebMethod returns a did:web resolver with a bounded HTTP timeout.
func NewWebMethod(timeout time.Duration, insecure bool) *WebMethod {
	return &WebMethod{
		Client:   &http.Client{Timeout: timeout},
		Insecure: insecure,
	}
}

// DocumentURL maps a did:web identifier to its document location:
// did:web:example.com -> https://example.com/.well-known/did.json and
// did:web:example.com:users:alice -> https://example.com/users/alice/did.json.
// A port is written percent-encoded, e.g. did:web:localhost%3A8443.
func (m *WebMethod) DocumentURL(d DID) (string, error) {
	parts := strings.Split(d.ID, ":")
	for i, p := range parts {
		dec, err := url.PathUnescape(p)
		if err != nil || dec == "" {
			return "", fmt.Errorf("%w: %s", ErrInvalidDID, d)
		}
		parts[i] = dec
	}

	scheme := "https"
	if m.Insecure {
		scheme = "http"
	}

	path := "/.well-known/did.json"
	if len(parts) > 1 {
		path = "/" + strings.Join(parts[1:], "/") + "/did.json"
	}

	u := url.URL{Scheme: scheme, Host: parts[0], Path: path}
	return u.String(), nil
}

func (m *WebMethod) Resolve(ctx context.Context, d DID) (*Document, error) {
	if d.Method != "web" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, d.Method)
	}

	docURL, err := m.DocumentURL(d)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}
	req.Header.Set("Accept", "application/did+json, application/json")

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrUnavailable, docURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s returned %d", ErrNotFound, docURL, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnavailable, docURL, resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, docURL, err)
	}
	if doc.ID != d.String() {
		return nil, fmt.Errorf("%w: document id %q does not match %s", ErrNotFound, doc.ID, d)
	}

	return &doc, nil
}
