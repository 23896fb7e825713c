package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ethpandaops/tokengate/metrics"
)

const userAgent = "tokengate/1.0"

// Transfer actions of the etherscan "account" module by token standard.
const (
	ActionTokenTx     = "tokentx"
	ActionTokenNftTx  = "tokennfttx"
	ActionToken1155Tx = "token1155tx"
)

// TransferAction returns the explorer action listing transfers of the given token standard.
func TransferAction(standard uint16) (string, bool) {
	switch standard {
	case 20:
		return ActionTokenTx, true
	case 721:
		return ActionTokenNftTx, true
	case 1155:
		return ActionToken1155Tx, true
	default:
		return "", false
	}
}

type ClientConfig struct {
	ChainId    uint64
	ChainName  string
	BaseUrl    string
	ApiKey     string
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	MaxRetries int
}

// Client talks to an etherscan compatible explorer api of one chain.
type Client struct {
	config     ClientConfig
	logger     logrus.FieldLogger
	httpClient *http.Client
	limiter    *rate.Limiter
	chainLabel string
}

// TransferQuery selects one page of transfers of a contract.
type TransferQuery struct {
	Action          string
	ContractAddress string
	StartBlock      uint64
	PageSize        int
	Page            int
}

func NewClient(config ClientConfig, logger logrus.FieldLogger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return &Client{
		config: config,
		logger: logger.WithFields(logrus.Fields{
			"chain":     config.ChainId,
			"chainName": config.ChainName,
		}),
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
		chainLabel: strconv.FormatUint(config.ChainId, 10),
	}
}

func (c *Client) ChainId() uint64 {
	return c.config.ChainId
}

// GetTransfers requests one page of transfers in ascending block order starting at query.StartBlock.
func (c *Client) GetTransfers(ctx context.Context, query *TransferQuery) ([]*TransferEvent, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", query.Action)
	params.Set("contractaddress", query.ContractAddress)
	params.Set("startblock", strconv.FormatUint(query.StartBlock, 10))
	params.Set("endblock", "latest")
	params.Set("sort", "asc")
	params.Set("offset", strconv.Itoa(query.PageSize))
	page := query.Page
	if page == 0 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))

	response, err := c.request(ctx, query.Action, params)
	if err != nil {
		return nil, err
	}

	if len(response.Result) == 0 || bytes.Equal(response.Result, []byte("null")) {
		return nil, &FetchError{ChainId: c.config.ChainId, Action: query.Action, Message: "response without result field"}
	}

	items := []*transferItem{}
	if err := json.Unmarshal(response.Result, &items); err != nil {
		// errors come back as a plain string result
		var resultMsg string
		if json.Unmarshal(response.Result, &resultMsg) == nil {
			return nil, &FetchError{ChainId: c.config.ChainId, Action: query.Action, Message: fmt.Sprintf("%v: %v", response.Message, resultMsg)}
		}
		return nil, &FetchError{ChainId: c.config.ChainId, Action: query.Action, Message: "invalid result field", Err: err}
	}

	events := make([]*TransferEvent, 0, len(items))
	for idx, item := range items {
		event, err := item.toEvent()
		if err != nil {
			return nil, &FetchError{ChainId: c.config.ChainId, Action: query.Action, Message: fmt.Sprintf("invalid transfer item %v", idx), Err: err}
		}
		events = append(events, event)
	}

	metrics.TransfersFetched.WithLabelValues(c.chainLabel).Add(float64(len(events)))

	return events, nil
}

// GetTokenInfo looks up the token metadata of a contract. Returns nil without error if the explorer
// reports success but the result cannot be used.
func (c *Client) GetTokenInfo(ctx context.Context, contractAddress string) (*TokenInfo, error) {
	params := url.Values{}
	params.Set("module", "token")
	params.Set("action", "tokeninfo")
	params.Set("contractaddress", contractAddress)

	response, err := c.request(ctx, "tokeninfo", params)
	if err != nil {
		return nil, err
	}

	if response.Status != "1" {
		return nil, &TokenInfoError{Address: contractAddress, Message: response.Message}
	}

	items := []*tokenInfoItem{}
	if err := json.Unmarshal(response.Result, &items); err != nil || len(items) == 0 {
		c.logger.Warnf("unusable token info result for %v: %s", contractAddress, response.Result)
		return nil, nil
	}

	info, err := items[0].toTokenInfo()
	if err != nil {
		c.logger.WithError(err).Warnf("invalid token info for %v", contractAddress)
		return nil, nil
	}
	return info, nil
}

func (c *Client) request(ctx context.Context, action string, params url.Values) (*apiResponse, error) {
	if c.config.ApiKey != "" {
		params.Set("apikey", c.config.ApiKey)
	}

	reqUrl, err := url.Parse(c.config.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid explorer url %v: %w", c.config.BaseUrl, err)
	}
	reqUrl.RawQuery = params.Encode()
	finalUrl := reqUrl.String()

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, time.Duration(attempt-1)*500*time.Millisecond); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		response, retry, err := c.doRequest(ctx, finalUrl)
		if err == nil {
			metrics.ExplorerRequests.WithLabelValues(c.chainLabel, action, "ok").Inc()
			return response, nil
		}

		metrics.ExplorerRequests.WithLabelValues(c.chainLabel, action, "error").Inc()
		lastErr = err
		if !retry {
			break
		}
		c.logger.WithError(err).Debugf("explorer %v request failed (attempt %v/%v)", action, attempt, c.config.MaxRetries)
	}

	return nil, fmt.Errorf("explorer %v request failed: %w", action, lastErr)
}

func (c *Client) doRequest(ctx context.Context, reqUrl string) (*apiResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, isTemporaryNetErr(err) && ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, isTemporaryNetErr(err), err
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 1024 {
			snippet = snippet[:1024]
		}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, fmt.Errorf("unexpected status %v, body: %s", resp.StatusCode, snippet)
	}

	response := &apiResponse{}
	if err := json.Unmarshal(body, response); err != nil {
		return nil, false, &FetchError{ChainId: c.config.ChainId, Message: "invalid json response", Err: err}
	}

	// rate limit rejections are sent with http 200
	var resultMsg string
	if response.Status == "0" && json.Unmarshal(response.Result, &resultMsg) == nil && strings.Contains(strings.ToLower(resultMsg), "rate limit") {
		return nil, true, fmt.Errorf("explorer rate limit: %v", resultMsg)
	}

	return response, false, nil
}

func isTemporaryNetErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
