package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/pdfqa/pkg/utils"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds one completion request end to end.
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 500

	chatCompletionsPath = "chat/completions"
)

// Options fixes the backend at construction.
type Options struct {
	Endpoint string // chat-completions URL, or the API base URL it lives under
	Model    string
	APIKey   string
	Timeout  time.Duration
	Referer  string // sent as HTTP-Referer
	Title    string // sent as X-Title
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	opts       Options
	client     openai.Client
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for request failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the HTTP client; intended for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New validates opts and returns a client.
func New(opts Options, clientOpts ...Option) (*Client, error) {
	opts.Endpoint = strings.TrimSpace(opts.Endpoint)
	if opts.Endpoint == "" {
		return nil, errors.New("completion: endpoint required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("completion: model required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("completion: API key required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	c := &Client{opts: opts}
	for _, o := range clientOpts {
		o(c)
	}
	c.logger = utils.OrNop(c.logger)

	reqOpts := []option.RequestOption{
		option.WithBaseURL(baseURL(opts.Endpoint)),
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.Referer != "" {
		reqOpts = append(reqOpts, option.WithHeader("HTTP-Referer", opts.Referer))
	}
	if opts.Title != "" {
		reqOpts = append(reqOpts, option.WithHeader("X-Title", opts.Title))
	}
	if c.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpClient))
	}
	c.client = openai.NewClient(reqOpts...)
	return c, nil
}

// baseURL turns a full chat-completions URL into the base URL the SDK appends its path to.
func baseURL(endpoint string) string {
	base := strings.TrimSuffix(strings.TrimRight(endpoint, "/"), chatCompletionsPath)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.opts.Model
}

// Complete sends prompt as a single user message. It never panics or returns an error:
// every failure is mapped to a Result with a distinct kind and message.
func (c *Client) Complete(ctx context.Context, prompt string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	// The body is decoded here rather than by the SDK so that an unparseable reply is
	// reported as malformed instead of as a generic request failure.
	var raw []byte
	_, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}, option.WithResponseBodyInto(&raw))
	if err != nil {
		res := classify(err)
		c.logger.Error("completion request failed", zap.String("kind", string(res.Kind)), zap.Error(err))
		return res
	}

	var resp openai.ChatCompletion
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Error("completion response is not JSON", zap.Error(err))
		return failure(KindMalformedResponse, MsgMalformedResponse)
	}
	if len(resp.Choices) == 0 || !resp.Choices[0].Message.JSON.Content.Valid() {
		c.logger.Error("completion response has no content", zap.String("body", utils.Truncate(string(raw), maxErrorBody)))
		return failure(KindMissingContent, MsgMissingContent)
	}
	return Result{Text: resp.Choices[0].Message.Content}
}

func classify(err error) Result {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		httpErr := &HTTPError{
			StatusCode: apiErr.StatusCode,
			Body:       utils.Truncate(strings.TrimSpace(apiErr.RawJSON()), maxErrorBody),
		}
		return failure(KindRequest, MsgRequestPrefix+httpErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failure(KindTimeout, MsgTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failure(KindTimeout, MsgTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return failure(KindRequest, MsgRequestPrefix+err.Error())
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return failure(KindConnection, MsgConnection)
	}
	return failure(KindRequest, fmt.Sprintf("%s%v", MsgRequestPrefix, err))
}
