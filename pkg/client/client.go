// Package client 是 TVDom 资源API的HTTP客户端。
// 所有非2xx响应都会被还原为 apperr 中的错误类别。
package client

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/haider-9/tvdom/pkg/apperr"
)

const (
	// DefaultTimeout 是每个请求的默认超时。
	DefaultTimeout = 15 * time.Second

	// SessionCookie 保存会话令牌。
	SessionCookie = "tvdom_session"
	// UserCookie 保存当前用户资料的JSON，供服务端渲染的页面读取。
	UserCookie = "tvdom_user"
)

// Client 调用资源API。并发安全。
type Client struct {
	http    *resty.Client
	baseURL *url.URL
	jar     http.CookieJar

	mu    sync.RWMutex
	token string
}

// Option 配置 Client。
type Option func(*Client)

// WithTimeout 设置单个请求的超时。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

func configureJSON(r *resty.Client) {
	r.SetJSONMarshaler(json.Marshal)
	r.SetJSONUnmarshaler(json.Unmarshal)
	r.SetHeader("Accept", "application/json")
}

// New 创建一个客户端，baseURL 是服务器根地址，例如 http://localhost:8080。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, apperr.Validation("无效的服务器地址: " + err.Error())
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, apperr.Validation("服务器地址必须包含协议和主机")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(u.String()).
			SetTimeout(DefaultTimeout).
			SetCookieJar(jar),
		baseURL: u,
		jar:     jar,
	}
	configureJSON(c.http)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetToken 设置后续请求使用的令牌，并把令牌和用户资料同步到Cookie中。
// token 为空时清除两个Cookie。
func (c *Client) SetToken(token string, user *User) error {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if token == "" {
		c.jar.SetCookies(c.baseURL, []*http.Cookie{
			{Name: SessionCookie, Path: "/", MaxAge: -1},
			{Name: UserCookie, Path: "/", MaxAge: -1},
		})
		return nil
	}

	cookies := []*http.Cookie{{Name: SessionCookie, Value: token, Path: "/"}}
	if user != nil {
		raw, err := json.Marshal(user)
		if err != nil {
			return err
		}
		cookies = append(cookies, &http.Cookie{Name: UserCookie, Value: url.QueryEscape(string(raw)), Path: "/"})
	}
	c.jar.SetCookies(c.baseURL, cookies)
	return nil
}

// Token 返回当前令牌。
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Cookies 返回Cookie罐中属于服务器地址的Cookie。
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

// CookieUser 解析 tvdom_user Cookie，不存在时返回 nil。
func (c *Client) CookieUser() (*User, error) {
	for _, ck := range c.Cookies() {
		if ck.Name != UserCookie {
			continue
		}
		raw, err := url.QueryUnescape(ck.Value)
		if err != nil {
			return nil, err
		}
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, err
		}
		return &u, nil
	}
	return nil, nil
}

type errorBody struct {
	Error string `json:"error"`
}

type request struct {
	method string
	path   string
	query  map[string]string
	body   any
	out    any
}

// do 发送请求并把失败转换为 apperr 错误。
func (c *Client) do(ctx context.Context, r request) (*resty.Response, error) {
	var apiErr errorBody
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if tok := c.Token(); tok != "" {
		req.SetAuthToken(tok)
	}
	if len(r.query) > 0 {
		req.SetQueryParams(r.query)
	}
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}
	if r.out != nil {
		req.SetResult(r.out)
	}

	resp, err := req.Execute(r.method, r.path)
	if err != nil {
		return nil, apperr.Unavailable("无法连接服务器", err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status()
		}
		return resp, apperr.FromStatus(resp.StatusCode(), msg)
	}
	return resp, nil
}
