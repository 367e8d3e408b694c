package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// LocalhostAuthPort is the port the local web server listens on to
	// capture the OAuth redirect.
	LocalhostAuthPort = "6789"

	serviceAccountType = "service_account"
	authTimeout        = 5 * time.Minute
)

// Credentials locates the key material for the Google APIs.
type Credentials struct {
	// File is either a service account key or an OAuth client secret.
	File string
	// TokenFile caches the user token for the OAuth client flow.
	TokenFile string
}

// IsServiceAccount reports whether the credentials file holds a service account key.
func IsServiceAccount(b []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(b, &probe) == nil && probe.Type == serviceAccountType
}

// GetClient returns an authenticated *http.Client for the given scopes.
// Service accounts are used as is; OAuth client secrets go through the
// cached token or, failing that, the browser authorization flow.
func GetClient(ctx context.Context, creds Credentials, scopes []string) (*http.Client, error) {
	b, err := os.ReadFile(creds.File)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file %s: %w", creds.File, err)
	}

	if IsServiceAccount(b) {
		jwt, err := google.JWTConfigFromJSON(b, scopes...)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		log.WithField("account", jwt.Email).Debug("using service account credentials")
		return jwt.Client(ctx), nil
	}

	config, err := GetConfig(b, scopes)
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(creds.TokenFile)
	if err != nil {
		log.Printf("No existing token found at %s. Initiating web authorization flow...", creds.TokenFile)
		tok, err = getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(creds.TokenFile, tok); err != nil {
			return nil, err
		}
	}

	// Persist refreshed tokens so the next pass starts from a valid access token.
	src := &savingTokenSource{
		base: config.TokenSource(ctx, tok),
		path: creds.TokenFile,
		last: tok,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// GetConfig parses an OAuth client secret and pins its redirect URL to the
// local callback server.
func GetConfig(clientSecret []byte, scopes []string) (*oauth2.Config, error) {
	config, err := google.ConfigFromJSON(clientSecret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	parsedURL, err := url.Parse(config.RedirectURL)
	switch {
	case err != nil || config.RedirectURL == "" || config.RedirectURL == "urn:ietf:wg:oauth:2.0:oob":
		config.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
	case parsedURL.Hostname() == "localhost" || parsedURL.Hostname() == "127.0.0.1":
		if parsedURL.Port() != LocalhostAuthPort {
			parsedURL.Host = net.JoinHostPort(parsedURL.Hostname(), LocalhostAuthPort)
			config.RedirectURL = parsedURL.String()
		}
	default:
		log.Warnf("Configured RedirectURL is not a localhost callback: %s. Ensure this is correct for your setup.", config.RedirectURL)
	}
	return config, nil
}

// Reauthorize discards the cached token and runs the browser flow again.
func Reauthorize(ctx context.Context, creds Credentials, scopes []string) error {
	if err := os.Remove(creds.TokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not delete token file '%s': %w", creds.TokenFile, err)
	}
	_, err := GetClient(ctx, creds, scopes)
	return err
}

// getTokenFromWeb runs the authorization code flow through a local web server.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", ":"+LocalhostAuthPort)
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				select {
				case errCh <- errors.New("authorization code not found in redirect URL"):
				default:
				}
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	defer server.Shutdown(context.Background())

	// AccessTypeOffline makes Google return a refresh token.
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Please open the following URL in your browser to authorize opcal:\n%s\n", authURL)
	log.Info("Waiting for authorization code...")

	select {
	case code := <-codeCh:
		exCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exCtx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timed out. Please try again")
	}
}

// savingTokenSource writes every new token it hands out back to disk.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			log.WithError(err).Warn("could not persist refreshed token")
		}
		s.last = tok
	}
	return tok, nil
}

// tokenFromFile reads an oauth2.Token from a JSON file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

// saveToken saves an oauth2.Token to a JSON file readable only by the owner.
func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	log.WithField("path", path).Debug("saved OAuth token")
	return json.NewEncoder(f).Encode(token)
}
