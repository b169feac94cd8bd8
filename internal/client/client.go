// Package client 远程日报平台接口
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	loginPath       = "/api/v1/auth/login"
	myProjectPath   = "/api/v1/projects/my-project"
	batchImportPath = "/api/v1/daily-reports/batch-import"
)

// Config 客户端配置
type Config struct {
	BaseURL        string
	LoginTimeout   time.Duration
	UploadTimeout  time.Duration
	RequestTimeout time.Duration
	SuccessCodes   []int // 视为成功的业务状态码
}

// DefaultConfig 默认超时：登录 10 秒，上传 60 秒
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		LoginTimeout:   10 * time.Second,
		UploadTimeout:  60 * time.Second,
		RequestTimeout: 10 * time.Second,
		SuccessCodes:   []int{1, 200},
	}
}

// Client 远程接口客户端，登录后持有 token
type Client struct {
	cfg      Config
	http     *http.Client
	validate *validator.Validate
	logger   *zap.Logger

	mu    sync.RWMutex
	token string
}

// Option 客户端选项
type Option func(*Client)

// WithLogger 指定日志
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New 创建客户端，零值配置项取默认值
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig(cfg.BaseURL)
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = def.LoginTimeout
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = def.UploadTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if len(cfg.SuccessCodes) == 0 {
		cfg.SuccessCodes = def.SuccessCodes
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:      cfg,
		http:     &http.Client{},
		validate: newValidator(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newValidator 校验错误中使用 json 字段名
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// BaseURL 接口地址
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Token 当前 token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken 设置 token（仅保存在内存中）
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// IsLoggedIn 是否已登录
func (c *Client) IsLoggedIn() bool { return c.Token() != "" }

// Logout 清除 token
func (c *Client) Logout() { c.SetToken("") }

// envelope 平台统一响应结构
type envelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) text() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Message
}

func (c *Client) isSuccess(code int) bool {
	for _, s := range c.cfg.SuccessCodes {
		if s == code {
			return true
		}
	}
	return false
}

// call 发送一次请求并解析统一响应；out 为 nil 时忽略 data
func (c *Client) call(ctx context.Context, op, method, path string, body any, timeout time.Duration, auth bool, out any) error {
	token := c.Token()
	if auth && token == "" {
		return ErrNotLoggedIn
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &APIError{Kind: KindInvalid, Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &APIError{Kind: KindUnreachable, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("token", token)
	}

	c.logger.Debug("api request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", url),
		zap.String("token", maskToken(token)),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := transportError(op, err)
		c.logger.Warn("api request failed", zap.String("op", op), zap.String("kind", string(apiErr.Kind)), zap.Error(err))
		return apiErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, err)
	}
	c.logger.Debug("api response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode != http.StatusOK {
		msg := ""
		if decodeErr == nil {
			msg = env.text()
		}
		if msg == "" {
			msg = statusMessage(resp.StatusCode)
		}
		return &APIError{Kind: KindHTTPStatus, Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &APIError{Kind: KindMalformed, Op: op, StatusCode: resp.StatusCode, Message: decodeErr.Error(), Err: decodeErr}
	}
	if !c.isSuccess(env.Code) {
		return &APIError{Kind: KindBusiness, Op: op, StatusCode: resp.StatusCode, Code: env.Code, Message: env.text()}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Kind: KindMalformed, Op: op, StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}
	return nil
}

// maskToken 日志中只保留前 20 个字符
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 20 {
		return token[:len(token)/2] + "..."
	}
	return token[:20] + "..."
}
