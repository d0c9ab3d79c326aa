package config

import "time"

// WeChatConfig configures the WeChat web login provider
type WeChatConfig struct {
	Enabled              bool          `env:"WECHAT_ENABLED" env-default:"false"`
	AppID                string        `env:"WECHAT_APP_ID" env-default:""`
	AppSecret            string        `env:"WECHAT_APP_SECRET" env-default:""`
	AuthorizeURL         string        `env:"WECHAT_AUTHORIZE_URL" env-default:"https://open.weixin.qq.com/connect/qrconnect"`
	APIBaseURL           string        `env:"WECHAT_API_BASE_URL" env-default:"https://api.weixin.qq.com"`
	Scope                string        `env:"WECHAT_SCOPE" env-default:"snsapi_login"`
	Timeout              time.Duration `env:"WECHAT_TIMEOUT" env-default:"8s"`
	DefaultUserType      string        `env:"WECHAT_DEFAULT_USER_TYPE" env-default:"customer"`
	SelfServiceUserTypes []string      `env:"WECHAT_SELF_SERVICE_USER_TYPES" env-separator:"," env-default:"customer,provider"`
}

func (w WeChatConfig) validate() ValidationErrors {
	if !w.Enabled {
		return nil
	}
	errs := CollectErrors(
		RequireNonEmpty("WECHAT_APP_ID", w.AppID),
		RequireNonEmpty("WECHAT_APP_SECRET", w.AppSecret),
		RequireValidURL("WECHAT_AUTHORIZE_URL", w.AuthorizeURL),
		RequireValidURL("WECHAT_API_BASE_URL", w.APIBaseURL),
		RequirePositiveDuration("WECHAT_TIMEOUT", w.Timeout),
	)
	return append(errs, federatedUserTypes("WECHAT", w.DefaultUserType, w.SelfServiceUserTypes)...)
}

// OAuth2ProviderConfig configures one standards-compliant OAuth2/OIDC provider
type OAuth2ProviderConfig struct {
	Enabled              bool          `env:"OAUTH2_IDP_ENABLED" env-default:"false"`
	Name                 string        `env:"OAUTH2_IDP_NAME" env-default:"oidc"`
	ClientID             string        `env:"OAUTH2_IDP_CLIENT_ID" env-default:""`
	ClientSecret         string        `env:"OAUTH2_IDP_CLIENT_SECRET" env-default:""`
	AuthURL              string        `env:"OAUTH2_IDP_AUTH_URL" env-default:""`
	TokenURL             string        `env:"OAUTH2_IDP_TOKEN_URL" env-default:""`
	UserInfoURL          string        `env:"OAUTH2_IDP_USERINFO_URL" env-default:""`
	Scopes               []string      `env:"OAUTH2_IDP_SCOPES" env-separator:"," env-default:"openid,profile,email"`
	SubjectField         string        `env:"OAUTH2_IDP_SUBJECT_FIELD" env-default:"sub"`
	Timeout              time.Duration `env:"OAUTH2_IDP_TIMEOUT" env-default:"8s"`
	DefaultUserType      string        `env:"OAUTH2_IDP_DEFAULT_USER_TYPE" env-default:"customer"`
	SelfServiceUserTypes []string      `env:"OAUTH2_IDP_SELF_SERVICE_USER_TYPES" env-separator:"," env-default:"customer,provider"`
}

func (o OAuth2ProviderConfig) validate() ValidationErrors {
	if !o.Enabled {
		return nil
	}
	errs := CollectErrors(
		RequireNonEmpty("OAUTH2_IDP_NAME", o.Name),
		RequireNonEmpty("OAUTH2_IDP_CLIENT_ID", o.ClientID),
		RequireValidURL("OAUTH2_IDP_AUTH_URL", o.AuthURL),
		RequireValidURL("OAUTH2_IDP_TOKEN_URL", o.TokenURL),
		RequireValidURL("OAUTH2_IDP_USERINFO_URL", o.UserInfoURL),
		RequirePositiveDuration("OAUTH2_IDP_TIMEOUT", o.Timeout),
	)
	return append(errs, federatedUserTypes("OAUTH2_IDP", o.DefaultUserType, o.SelfServiceUserTypes)...)
}

// account types anyone can create through federated sign-up
var selfServiceUserTypes = []string{"customer", "provider"}

func federatedUserTypes(prefix, def string, selfService []string) ValidationErrors {
	errs := CollectErrors(RequireOneOf(prefix+"_DEFAULT_USER_TYPE", def, selfServiceUserTypes))
	for _, t := range selfService {
		errs = append(errs, CollectErrors(RequireOneOf(prefix+"_SELF_SERVICE_USER_TYPES", t, selfServiceUserTypes))...)
	}
	return errs
}
