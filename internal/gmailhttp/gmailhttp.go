/*
Package gmailhttp implements an HTTP client for the GMail API.

Credentials come from a standard OAuth client-secret JSON file (the
"installed application" flavor downloaded from the Google developer
console). The bearer token is cached on disk; when no valid cached
token exists the user is walked through the authorization-code flow
once on the terminal.

Token refresh is delegated to oauth2.ReuseTokenSource, so a long
merge run survives token expiry without re-prompting. The refreshed
token is not written back to the cache file; only the refresh token
matters across processes and that one never changes here.
*/
package gmailhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/matta/gmailmerge/internal/gmail"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Options locates the OAuth client secret and the token cache.
type Options struct {
	// CredentialsFile is the OAuth client-secret JSON path.
	CredentialsFile string

	// TokenFile caches the bearer token between runs.
	TokenFile string
}

// New returns a new HTTP client capable of using the GMail API.
func New(ctx context.Context, opts Options) (*http.Client, error) {
	b, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "reading OAuth client secret %q", opts.CredentialsFile)
	}
	cfg, err := google.ConfigFromJSON(b,
		gmail.SendScope, gmail.ComposeScope, gmail.LabelsScope, gmail.ModifyScope)
	if err != nil {
		return nil, errors.Wrap(err, "parsing OAuth client secret")
	}

	tok, err := tokenFromFile(opts.TokenFile)
	if err != nil {
		tok, err = authorize(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(opts.TokenFile, tok); err != nil {
			return nil, err
		}
	}

	src := oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok))
	return oauth2.NewClient(ctx, src), nil
}

// authorize runs the interactive authorization-code flow on the
// terminal.
func authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	url := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Authorize this tool in your browser, then paste the code here:\n%v\n\ncode: ", url)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, errors.Wrap(err, "reading authorization code")
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "exchanging authorization code")
	}
	return tok, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, errors.Wrapf(err, "decoding cached token %q", path)
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, errors.New("cached token expired with no refresh token")
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrapf(err, "creating token cache directory for %q", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "creating token cache %q", path)
	}
	defer f.Close()
	return errors.Wrap(json.NewEncoder(f).Encode(tok), "writing token cache")
}
