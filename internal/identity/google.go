package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"compass-auth/internal/model"
)

const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	maxUserInfoBytes = 1 << 20
)

var googleScopes = []string{"openid", "email", "profile"}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string

	// Overridable for tests.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	HTTPClient  *http.Client
}

// GoogleExchanger builds a fresh oauth2.Config for every exchange so the
// redirect URI always matches the one the client was sent to.
type GoogleExchanger struct {
	cfg GoogleConfig
}

func NewGoogleExchanger(cfg GoogleConfig) *GoogleExchanger {
	if cfg.AuthURL == "" {
		cfg.AuthURL = GoogleAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = GoogleTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = GoogleUserInfoURL
	}
	return &GoogleExchanger{cfg: cfg}
}

func (g *GoogleExchanger) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       googleScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   g.cfg.AuthURL,
			TokenURL:  g.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (g *GoogleExchanger) Exchange(ctx context.Context, code string, redirectURI string) (Profile, error) {
	if g.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.cfg.HTTPClient)
	}

	conf := g.config(redirectURI)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "redirect_uri_mismatch" {
			return Profile{}, fmt.Errorf("%w: %s", model.ErrRedirectMismatch, retrieveErr.ErrorDescription)
		}
		return Profile{}, fmt.Errorf("%w: token exchange: %v", model.ErrExchangeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.UserInfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: userinfo request: %v", model.ErrExchangeFailed, err)
	}

	resp, err := conf.Client(ctx, token).Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: userinfo: %v", model.ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return Profile{}, fmt.Errorf("%w: read userinfo: %v", model.ErrExchangeFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: userinfo status %d", model.ErrExchangeFailed, resp.StatusCode)
	}

	return parseUserInfo(body)
}

// parseUserInfo accepts both the v3 ("sub") and v2 ("id") userinfo shapes.
func parseUserInfo(body []byte) (Profile, error) {
	if !gjson.ValidBytes(body) {
		return Profile{}, fmt.Errorf("%w: userinfo is not json", model.ErrExchangeFailed)
	}

	doc := gjson.ParseBytes(body)
	profile := Profile{
		GoogleID:      doc.Get("sub").String(),
		Email:         strings.TrimSpace(doc.Get("email").String()),
		EmailVerified: doc.Get("email_verified").Bool(),
		Name:          doc.Get("name").String(),
		Picture:       doc.Get("picture").String(),
	}
	if profile.GoogleID == "" {
		profile.GoogleID = doc.Get("id").String()
	}
	if !doc.Get("email_verified").Exists() {
		profile.EmailVerified = doc.Get("verified_email").Bool()
	}

	if profile.GoogleID == "" || profile.Email == "" {
		return Profile{}, fmt.Errorf("%w: userinfo lacks id or email", model.ErrExchangeFailed)
	}

	return profile, nil
}
