package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"vita-api/internal/shared"

	"go.uber.org/zap"
)

// Client talks to an OpenAI-style streaming completions endpoint over SSE.
type Client struct {
	baseURL string
	apiKey  string
	modelID string
	log     *zap.SugaredLogger

	httpClients  map[string]*http.Client
	clientsMutex sync.RWMutex
}

func NewClient(baseURL, apiKey, modelID string, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		modelID:     modelID,
		log:         log,
		httpClients: make(map[string]*http.Client),
	}
}

func (c *Client) getHTTPClient(endpoint string) *http.Client {
	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		c.log.Warnw("Failed to parse model URL, using full URL as key", "url", endpoint, "error", err)
		parsedURL = &url.URL{Host: endpoint}
	}
	host := parsedURL.Host

	c.clientsMutex.RLock()
	if client, exists := c.httpClients[host]; exists {
		c.clientsMutex.RUnlock()
		return client
	}
	c.clientsMutex.RUnlock()

	c.clientsMutex.Lock()
	defer c.clientsMutex.Unlock()

	if client, exists := c.httpClients[host]; exists {
		return client
	}

	tr := &http.Transport{
		Dial: (&net.Dialer{
			Timeout: 2 * time.Second,
		}).Dial,
		TLSHandshakeTimeout: 2 * time.Second,
		DisableKeepAlives:   false,
	}
	client := &http.Client{Transport: tr, Timeout: 10 * time.Minute}

	c.httpClients[host] = client
	return client
}

func (c *Client) Stream(ctx context.Context, req Request) (FragmentStream, error) {
	req.Stream = true
	if req.Model == "" {
		req.Model = c.modelID
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Join(shared.ErrInvalidRequest, err)
	}

	endpoint := c.baseURL + "/v1/chat/completions"
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, errors.Join(errors.New("failed building model request"), err)
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Connection", "keep-alive")
	if c.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.getHTTPClient(endpoint).Do(r)
	if err != nil {
		return nil, errors.Join(shared.ErrModelRequest, err)
	}
	if res.StatusCode != http.StatusOK {
		_ = res.Body.Close()
		return nil, errors.Join(&shared.RequestError{StatusCode: 502, Err: errors.New("upstream model request failed")}, shared.ErrModelStatus)
	}

	return &sseStream{body: res.Body, scanner: bufio.NewScanner(res.Body)}, nil
}

type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
	closed  bool
}

type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (s *sseStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	if s.closed {
		return "", errors.New("stream closed")
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			continue
		}
		data, found := strings.CutPrefix(line, "data: ")
		if !found {
			continue
		}
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var ch chunk
		if err := json.Unmarshal([]byte(data), &ch); err != nil {
			// Malformed chunks are skipped, not fatal
			continue
		}
		if len(ch.Choices) == 0 || ch.Choices[0].Delta.Content == "" {
			continue
		}
		return ch.Choices[0].Delta.Content, nil
	}

	if err := s.scanner.Err(); err != nil {
		return "", errors.Join(shared.ErrModelRead, err)
	}
	// Body ended without the terminal sentinel, treat as a truncated stream
	return "", shared.ErrModelMissingDone
}

func (s *sseStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
