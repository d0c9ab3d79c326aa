package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-oidc/pkg/bootstrap"
	"github.com/tendant/simple-oidc/pkg/config"
	"github.com/tendant/simple-oidc/pkg/externalprovider"
	"github.com/tendant/simple-oidc/pkg/login"
	"github.com/tendant/simple-oidc/pkg/oauth2client"
	"github.com/tendant/simple-oidc/pkg/oidc"
	oidcapi "github.com/tendant/simple-oidc/pkg/oidc/api"
	"github.com/tendant/simple-oidc/pkg/ratelimit"
	"github.com/tendant/simple-oidc/pkg/server"
	"github.com/tendant/simple-oidc/pkg/user"
	"github.com/tendant/simple-oidc/pkg/wellknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(-1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.close()

	clientService := oauth2client.NewClientService(st.clients)
	userService := user.NewUserService(st.users)
	if err := seed(ctx, cfg, clientService, userService); err != nil {
		return err
	}

	codeStore := oidc.NewCodeStore(st.codes,
		oidc.WithCodeExpiration(cfg.Code.TTL),
		oidc.WithOpTimeout(cfg.Storage.OpTimeout),
	)
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	cleanupDone := codeStore.StartCleanup(ctx, cfg.Code.CleanupInterval)

	issuer, keys, err := bootstrap.NewIssuer(cfg.JWT)
	if err != nil {
		return err
	}

	verifier := login.NewCredentialVerifier(st.users)

	stateSecret := cfg.Code.StateSecret
	if stateSecret == "" {
		stateSecret = randomSecret()
		slog.Warn("FEDERATION_STATE_SECRET not set, using a random secret; federated logins will not survive a restart")
	}
	placeholderSecret := cfg.Code.PlaceholderSecret
	if placeholderSecret == "" {
		placeholderSecret = externalprovider.DerivePlaceholderSecret(stateSecret)
		if cfg.Code.StateSecret == "" {
			slog.Warn("FEDERATION_PLACEHOLDER_SECRET not set, synthesized emails of new federated accounts change on restart")
		}
	}

	registry, err := newFederation(cfg, userService, placeholderSecret)
	if err != nil {
		return err
	}

	handlerOpts := []oidcapi.Option{}
	if names := registry.Names(); len(names) > 0 {
		handlerOpts = append(handlerOpts, oidcapi.WithFederation(registry, oidc.NewStateCodec(stateSecret, cfg.Code.TTL)))
		if !cfg.WeChat.Enabled {
			handlerOpts = append(handlerOpts, oidcapi.WithDefaultProvider(names[0]))
		}
		slog.Info("Federated login enabled", "providers", names)
	}
	oidcHandler := oidcapi.NewHandler(clientService, codeStore, verifier, st.users, issuer, handlerOpts...)

	base := app.DefaultApp()
	app.RegisterHealthzRoutes(base.R)

	srv := server.New(cfg.Server.Addr, base.R,
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)

	guards := oidcapi.Guards{
		Attempt: []func(http.Handler) http.Handler{srv.RejectWhenDraining},
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewMiddleware(ratelimit.Config{
			PerSecond:         cfg.RateLimit.Rate,
			Burst:             cfg.RateLimit.Burst,
			TrustProxyHeaders: cfg.RateLimit.TrustProxyHeaders,
		})
		limiter.Limiter().StartCleanup(ctx)
		guards.Credential = append(guards.Credential, limiter.Handler)
		slog.Info("Rate limiting configured", "rps", cfg.RateLimit.Rate, "burst", cfg.RateLimit.Burst)
	}
	oidcHandler.Routes(base.R, guards)

	wellknown.NewHandler(wellknown.Config{
		Issuer:     cfg.JWT.Issuer,
		BaseURL:    cfg.Server.BaseURL,
		SigningAlg: issuer.Algorithm(),
		Scopes:     oidc.SupportedScopes,
	}, keys).Routes(base.R)

	slog.Info("OIDC provider starting", "addr", cfg.Server.Addr, "base_url", cfg.Server.BaseURL,
		"issuer", cfg.JWT.Issuer, "storage", cfg.Storage.Driver, "alg", issuer.Algorithm())

	err = srv.Run(ctx)
	stop()
	<-cleanupDone
	return err
}

func seed(ctx context.Context, cfg *config.Config, clients *oauth2client.ClientService, users *user.UserService) error {
	if cfg.SeedClient.ClientID != "" {
		if _, err := bootstrap.EnsureClient(ctx, clients, &oauth2client.RegisteredClient{
			ClientID:     cfg.SeedClient.ClientID,
			ClientSecret: cfg.SeedClient.ClientSecret,
			ClientName:   cfg.SeedClient.ClientName,
			RedirectURIs: cfg.SeedClient.RedirectURIs,
		}); err != nil {
			return err
		}
	}
	if cfg.SeedUser.Enabled() {
		if _, err := bootstrap.EnsureLocalUser(ctx, users, bootstrap.LocalUserConfig{
			Email:    cfg.SeedUser.Email,
			Phone:    cfg.SeedUser.Phone,
			Name:     cfg.SeedUser.Name,
			Password: cfg.SeedUser.Password,
			UserType: user.ParseUserType(cfg.SeedUser.UserType, user.UserTypeAdmin),
		}); err != nil {
			return err
		}
	}
	return nil
}

func newFederation(cfg *config.Config, users *user.UserService, placeholderSecret string) (*externalprovider.Registry, error) {
	registry := externalprovider.NewRegistry()
	baseURL := strings.TrimRight(cfg.Server.BaseURL, "/")

	if cfg.WeChat.Enabled {
		wechat, err := externalprovider.NewWeChatProvider(externalprovider.WeChatOptions{
			AppID:        cfg.WeChat.AppID,
			AppSecret:    cfg.WeChat.AppSecret,
			AuthorizeURL: cfg.WeChat.AuthorizeURL,
			APIBaseURL:   cfg.WeChat.APIBaseURL,
			Scope:        cfg.WeChat.Scope,
			RedirectURL:  baseURL + "/wechat/callback",
			HTTPClient:   &http.Client{Timeout: cfg.WeChat.Timeout},
		})
		if err != nil {
			return nil, err
		}
		registry.Register(externalprovider.NewBridge(wechat, users,
			externalprovider.WithTimeout(cfg.WeChat.Timeout),
			externalprovider.WithPlaceholderSecret(placeholderSecret),
			externalprovider.WithDefaultUserType(user.ParseUserType(cfg.WeChat.DefaultUserType, user.UserTypeCustomer)),
			externalprovider.WithSelfServiceUserTypes(userTypes(cfg.WeChat.SelfServiceUserTypes)...),
		))
	}

	if cfg.OAuth2IdP.Enabled {
		idp, err := externalprovider.NewOAuth2Provider(externalprovider.OAuth2Options{
			Name:         cfg.OAuth2IdP.Name,
			ClientID:     cfg.OAuth2IdP.ClientID,
			ClientSecret: cfg.OAuth2IdP.ClientSecret,
			AuthURL:      cfg.OAuth2IdP.AuthURL,
			TokenURL:     cfg.OAuth2IdP.TokenURL,
			UserInfoURL:  cfg.OAuth2IdP.UserInfoURL,
			RedirectURL:  baseURL + "/federated/" + cfg.OAuth2IdP.Name + "/callback",
			Scopes:       cfg.OAuth2IdP.Scopes,
			SubjectField: cfg.OAuth2IdP.SubjectField,
			HTTPClient:   &http.Client{Timeout: cfg.OAuth2IdP.Timeout},
		})
		if err != nil {
			return nil, err
		}
		registry.Register(externalprovider.NewBridge(idp, users,
			externalprovider.WithTimeout(cfg.OAuth2IdP.Timeout),
			externalprovider.WithPlaceholderSecret(placeholderSecret),
			externalprovider.WithDefaultUserType(user.ParseUserType(cfg.OAuth2IdP.DefaultUserType, user.UserTypeCustomer)),
			externalprovider.WithSelfServiceUserTypes(userTypes(cfg.OAuth2IdP.SelfServiceUserTypes)...),
		))
	}

	return registry, nil
}

func userTypes(names []string) []user.UserType {
	types := make([]user.UserType, 0, len(names))
	for _, n := range names {
		types = append(types, user.UserType(strings.TrimSpace(n)))
	}
	return types
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
