package weibo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wbarchive/pkg/config"
	errs "wbarchive/pkg/errors"
	"wbarchive/pkg/feed"
	"wbarchive/pkg/logger"
	"wbarchive/pkg/ratelimit"
	"wbarchive/pkg/retry"
)

// DefaultUserAgent is sent when the configuration does not override it.
const DefaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

// Client talks to the mobile weibo API. All requests pass through the
// shared rate limiter and the in-flight retry loop.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	retryCfg   *retry.Config
	logger     logger.Logger
}

// NewClient creates an API client from the configuration. A nil logger
// falls back to the package default.
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	ua := cfg.Weibo.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	headers := map[string]string{
		"User-Agent":       ua,
		"Accept":           "application/json, text/plain, */*",
		"Accept-Language":  "zh-CN,zh;q=0.9,en;q=0.8",
		"Referer":          BaseURL + "/",
		"X-Requested-With": "XMLHttpRequest",
	}
	if cfg.Weibo.Cookie != "" {
		headers["Cookie"] = cfg.Weibo.Cookie
	}

	rpm := cfg.Pacing.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = log
	if cfg.Retry.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.BaseDelay > 0 || cfg.Retry.MaxDelay > 0 {
		retryCfg.Backoff = &retry.ExponentialBackoff{
			BaseDelay:    cfg.Retry.BaseDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Weibo.RequestTimeout,
		},
		headers:  headers,
		baseURL:  BaseURL,
		limiter:  ratelimit.NewTokenBucket(rpm, time.Minute),
		retryCfg: retryCfg,
		logger:   log,
	}
}

// SetBaseURL overrides the API host. Used by tests to point the client
// at a local server.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// SetHeader sets a custom header for all subsequent requests.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// doRequest performs one HTTP request with the configured headers.
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	c.limiter.Wait()

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// get performs a GET with retry on transient failures and returns the
// body bytes of a 200 response.
func (c *Client) get(url string) ([]byte, error) {
	return retry.DoWithResult(func() ([]byte, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("failed to create request: %v", err),
				Code:    0,
			}
		}

		resp, err := c.doRequest(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeNetwork,
				Message: fmt.Sprintf("failed to read response body: %v", err),
				Code:    resp.StatusCode,
			}
		}
		return body, nil
	}, c.retryCfg)
}

// GetJSON performs a GET request and decodes the JSON response.
func (c *Client) GetJSON(url string, target interface{}) error {
	body, err := c.get(url)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    http.StatusOK,
		}
	}

	return nil
}

// checkResponseStatus maps HTTP status codes onto the error taxonomy.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "authentication required, check the cookie",
			Code:    resp.StatusCode,
		}
	case http.StatusNotFound:
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	default:
		if resp.StatusCode >= 500 {
			return &errs.Error{
				Type:    errs.ErrorTypeServerError,
				Message: "server error",
				Code:    resp.StatusCode,
			}
		}
		if resp.StatusCode >= 400 {
			return &errs.Error{
				Type:    errs.ErrorTypeUnknown,
				Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
				Code:    resp.StatusCode,
			}
		}
		return nil
	}
}

// ResolveFeed looks up a user's profile and returns the feed container
// to page through. The containerid hides in the "weibo" profile tab.
func (c *Client) ResolveFeed(uid string) (*Feed, error) {
	url := ProfileURL(c.baseURL, uid)

	c.logger.DebugWithFields("resolving user feed", map[string]interface{}{
		"uid": uid,
		"url": url,
	})

	var resp IndexResponse
	if err := c.GetJSON(url, &resp); err != nil {
		return nil, err
	}

	if resp.Ok != 1 {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: fmt.Sprintf("profile lookup returned ok=%d", resp.Ok),
			Code:    http.StatusOK,
		}
	}

	f := &Feed{UID: uid}
	if resp.Data.UserInfo != nil {
		f.ScreenName = resp.Data.UserInfo.ScreenName
	}
	if resp.Data.TabsInfo != nil {
		for _, tab := range resp.Data.TabsInfo.Tabs {
			if tab.TabType == "weibo" {
				f.ContainerID = tab.ContainerID
				break
			}
		}
	}
	if f.ContainerID == "" {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "no weibo tab in profile response, cookie may be invalid",
			Code:    http.StatusOK,
		}
	}

	c.logger.InfoWithFields("resolved user feed", map[string]interface{}{
		"uid":          uid,
		"screen_name":  f.ScreenName,
		"container_id": f.ContainerID,
	})

	return f, nil
}

// FetchPage fetches one feed page at the given cursor. It returns the
// normalized items, the cursor for the next page, or (nil, nil) items
// and cursor when the feed reports no further data.
func (c *Client) FetchPage(f *Feed, cursor feed.Cursor) ([]*feed.Item, *feed.Cursor, error) {
	url := FeedURL(c.baseURL, f.ContainerID, cursor.Page, cursor.Token)

	c.logger.DebugWithFields("fetching feed page", map[string]interface{}{
		"uid":  f.UID,
		"page": cursor.Page,
		"url":  url,
	})

	var resp IndexResponse
	if err := c.GetJSON(url, &resp); err != nil {
		return nil, nil, err
	}

	if resp.Ok != 1 {
		// ok=0 with an empty card list is how the API reports the end
		// of the feed.
		if len(resp.Data.Cards) == 0 {
			return nil, nil, nil
		}
		return nil, nil, &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: fmt.Sprintf("feed page returned ok=%d", resp.Ok),
			Code:    http.StatusOK,
		}
	}

	items := ParseCards(resp.Data.Cards, c.logger)

	token := ""
	if resp.Data.CardListInfo != nil {
		token = resp.Data.CardListInfo.SinceID.String()
	}
	next := cursor.Advance(token)

	return items, &next, nil
}

// FetchItem fetches a single post by its bid via the status endpoint.
// Used by the retry pass, where posts are revisited out of feed order.
func (c *Client) FetchItem(bid string) (*feed.Item, error) {
	url := StatusURL(c.baseURL, bid)

	c.logger.DebugWithFields("fetching single status", map[string]interface{}{
		"bid": bid,
		"url": url,
	})

	var resp StatusResponse
	if err := c.GetJSON(url, &resp); err != nil {
		return nil, err
	}

	if resp.Data == nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "status response carries no data",
			Code:    http.StatusOK,
		}
	}

	item, err := ParseMblog(resp.Data)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DownloadMedia downloads one media blob.
func (c *Client) DownloadMedia(url string) ([]byte, error) {
	c.logger.DebugWithFields("downloading media", map[string]interface{}{
		"url": url,
	})

	data, err := c.get(url)
	if err != nil {
		c.logger.ErrorWithFields("failed to download media", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return nil, err
	}

	c.logger.DebugWithFields("downloaded media", map[string]interface{}{
		"url":  url,
		"size": len(data),
	})

	return data, nil
}
