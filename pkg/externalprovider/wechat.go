package externalprovider

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

const WeChatProviderName = "wechat"

// WeChatOptions configures the WeChat website login provider
type WeChatOptions struct {
	AppID        string
	AppSecret    string
	AuthorizeURL string // https://open.weixin.qq.com/connect/qrconnect
	APIBaseURL   string // https://api.weixin.qq.com
	Scope        string // snsapi_login
	RedirectURL  string
	HTTPClient   *http.Client
}

// WeChatProvider speaks WeChat's non-standard OAuth2 dialect: credentials go in
// the query string, the token response carries the openid, and failures come
// back as errcode/errmsg in a 200 body.
type WeChatProvider struct {
	opts       WeChatOptions
	httpClient *http.Client
}

func NewWeChatProvider(opts WeChatOptions) (*WeChatProvider, error) {
	if opts.AppID == "" {
		return nil, fmt.Errorf("wechat app ID is required")
	}
	if opts.AppSecret == "" {
		return nil, fmt.Errorf("wechat app secret is required")
	}
	if opts.Scope == "" {
		opts.Scope = "snsapi_login"
	}
	opts.APIBaseURL = strings.TrimRight(opts.APIBaseURL, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &WeChatProvider{opts: opts, httpClient: httpClient}, nil
}

func (p *WeChatProvider) Name() string {
	return WeChatProviderName
}

// AuthCodeURL keeps WeChat's documented parameter order; the QR page rejects
// reordered queries.
func (p *WeChatProvider) AuthCodeURL(state string) string {
	var b strings.Builder
	b.WriteString(p.opts.AuthorizeURL)
	b.WriteString("?appid=" + url.QueryEscape(p.opts.AppID))
	b.WriteString("&redirect_uri=" + url.QueryEscape(p.opts.RedirectURL))
	b.WriteString("&response_type=code")
	b.WriteString("&scope=" + url.QueryEscape(p.opts.Scope))
	b.WriteString("&state=" + url.QueryEscape(state))
	b.WriteString("#wechat_redirect")
	return b.String()
}

type wechatError struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type wechatTokenResponse struct {
	wechatError
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	OpenID       string `json:"openid"`
	Scope        string `json:"scope"`
	UnionID      string `json:"unionid"`
}

func (p *WeChatProvider) Exchange(ctx context.Context, code string) (*RemoteToken, error) {
	params := url.Values{}
	params.Set("appid", p.opts.AppID)
	params.Set("secret", p.opts.AppSecret)
	params.Set("code", code)
	params.Set("grant_type", "authorization_code")

	var resp wechatTokenResponse
	if err := p.get(ctx, "/sns/oauth2/access_token", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	if resp.ErrCode != 0 {
		return nil, rejected("wechat errcode %d: %s", resp.ErrCode, resp.ErrMsg)
	}
	if resp.AccessToken == "" || resp.OpenID == "" {
		return nil, rejected("wechat token response missing access_token or openid")
	}

	return &RemoteToken{
		AccessToken: resp.AccessToken,
		Subject:     resp.OpenID,
		Expiry:      time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

func (p *WeChatProvider) FetchProfile(ctx context.Context, token *RemoteToken) (*RemoteProfile, error) {
	params := url.Values{}
	params.Set("access_token", token.AccessToken)
	params.Set("openid", token.Subject)

	var raw map[string]interface{}
	if err := p.get(ctx, "/sns/userinfo", params, &raw); err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	if code := getStringValue(raw, "errcode"); code != "" && code != "0" {
		return nil, rejected("wechat errcode %s: %s", code, getStringValue(raw, "errmsg"))
	}

	openID := getStringValue(raw, "openid")
	if openID == "" {
		openID = token.Subject
	}
	return &RemoteProfile{
		ID:     openID,
		Name:   getStringValue(raw, "nickname"),
		Avatar: getStringValue(raw, "headimgurl"),
		Raw:    raw,
	}, nil
}

// get performs a GET against the WeChat API. Non-2xx statuses are transport
// failures; WeChat reports rejections inside 200 bodies.
func (p *WeChatProvider) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.opts.APIBaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return malformed("wechat response", err)
	}
	return nil
}
