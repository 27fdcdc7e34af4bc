// Package redirect decides which OAuth redirect URI a client-supplied
// return URL maps to, and rejects anything outside the deployment's
// allow-lists.
package redirect

import (
	"net/url"
	"strings"

	"compass-auth/internal/model"
)

// ExpoProxyPrefix identifies redirects through the Expo development auth proxy.
const ExpoProxyPrefix = "https://auth.expo.io/"

const (
	loginPath    = "/login"
	registerPath = "/register"
	devWebPort   = "3000"
)

type Kind string

const (
	KindExpoProxy    Kind = "expoProxy"
	KindMobileScheme Kind = "mobileScheme"
	KindWeb          Kind = "web"
	KindDefault      Kind = "default"
)

type Purpose int

const (
	PurposeLogin Purpose = iota
	PurposeRegister
)

// Context is the classification of one redirect request. It is computed per
// request and never stored.
type Context struct {
	RawURL      string
	Kind        Kind
	ResolvedURI string
}

type Options struct {
	Development bool

	// ExpoProxyURI is the single accepted Expo proxy redirect.
	ExpoProxyURI string

	// MobileURIs are the exact custom-scheme redirects the apps register.
	MobileURIs []string

	// WebHosts are the hostnames allowed to receive web redirects on
	// /login and /register.
	WebHosts []string

	// Defaults used when the client sends no URL at all.
	DefaultLoginURI    string
	DefaultRegisterURI string
}

type Resolver struct {
	development        bool
	expoProxyURI       string
	mobileURIs         map[string]struct{}
	webAllowed         map[string]struct{}
	defaultLoginURI    string
	defaultRegisterURI string
}

func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		development:        opts.Development,
		expoProxyURI:       strings.TrimSpace(opts.ExpoProxyURI),
		mobileURIs:         map[string]struct{}{},
		webAllowed:         map[string]struct{}{},
		defaultLoginURI:    strings.TrimSpace(opts.DefaultLoginURI),
		defaultRegisterURI: strings.TrimSpace(opts.DefaultRegisterURI),
	}

	for _, uri := range opts.MobileURIs {
		if uri = strings.TrimSpace(uri); uri != "" {
			r.mobileURIs[uri] = struct{}{}
		}
	}

	for _, host := range opts.WebHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		r.webAllowed[r.canonical(host, loginPath)] = struct{}{}
		r.webAllowed[r.canonical(host, registerPath)] = struct{}{}
	}

	return r
}

// Resolve classifies rawURL and returns the redirect URI to use for the
// token exchange. It fails with model.ErrRedirectInvalid or
// model.ErrRedirectMalformed and has no side effects.
func (r *Resolver) Resolve(rawURL string, purpose Purpose) (Context, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return r.resolveDefault(purpose)
	}

	if strings.HasPrefix(rawURL, ExpoProxyPrefix) {
		if r.expoProxyURI == "" || rawURL != r.expoProxyURI {
			return Context{}, model.ErrRedirectInvalid
		}
		return Context{RawURL: rawURL, Kind: KindExpoProxy, ResolvedURI: rawURL}, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		return Context{}, model.ErrRedirectMalformed
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		if _, ok := r.mobileURIs[rawURL]; !ok {
			return Context{}, model.ErrRedirectInvalid
		}
		return Context{RawURL: rawURL, Kind: KindMobileScheme, ResolvedURI: rawURL}, nil
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return Context{}, model.ErrRedirectMalformed
	}

	basePath := loginPath
	if strings.Contains(parsed.Path, "register") {
		basePath = registerPath
	}

	resolved := r.canonical(host, basePath)
	if _, ok := r.webAllowed[resolved]; !ok {
		return Context{}, model.ErrRedirectInvalid
	}

	return Context{RawURL: rawURL, Kind: KindWeb, ResolvedURI: resolved}, nil
}

func (r *Resolver) resolveDefault(purpose Purpose) (Context, error) {
	uri := r.defaultLoginURI
	if purpose == PurposeRegister {
		uri = r.defaultRegisterURI
	}
	if uri == "" {
		return Context{}, model.ErrRedirectInvalid
	}
	return Context{Kind: KindDefault, ResolvedURI: uri}, nil
}

// canonical rebuilds the URI the provider has registered for host.
func (r *Resolver) canonical(host string, basePath string) string {
	if r.development {
		return "http://" + host + ":" + devWebPort + basePath
	}
	return "https://" + host + basePath
}
