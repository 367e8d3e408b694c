package auth

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const clientSecret = `{"installed": {
	"client_id": "id.apps.googleusercontent.com",
	"client_secret": "shh",
	"auth_uri": "https://accounts.google.com/o/oauth2/auth",
	"token_uri": "https://oauth2.googleapis.com/token",
	"redirect_uris": ["http://localhost"]
}}`

func TestIsServiceAccount(t *testing.T) {
	if !IsServiceAccount([]byte(`{"type": "service_account", "client_email": "x@y"}`)) {
		t.Error("Expected service account key to be detected")
	}
	if IsServiceAccount([]byte(clientSecret)) {
		t.Error("Expected client secret not to be a service account")
	}
	if IsServiceAccount([]byte("not json")) {
		t.Error("Expected garbage not to be a service account")
	}
}

func TestGetConfigPinsLocalhostPort(t *testing.T) {
	cfg, err := GetConfig([]byte(clientSecret), []string{"scope"})
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if cfg.RedirectURL != "http://localhost:"+LocalhostAuthPort {
		t.Errorf("Expected redirect on port %s, got %s", LocalhostAuthPort, cfg.RedirectURL)
	}

	oob := strings.Replace(clientSecret, `"http://localhost"`, `"urn:ietf:wg:oauth:2.0:oob"`, 1)
	cfg, err = GetConfig([]byte(oob), nil)
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if !strings.HasSuffix(cfg.RedirectURL, ":"+LocalhostAuthPort+"/oauth2callback") {
		t.Errorf("Expected OOB redirect to be replaced, got %s", cfg.RedirectURL)
	}
}

func TestGetClientUsesCachedToken(t *testing.T) {
	dir := t.TempDir()
	creds := Credentials{File: filepath.Join(dir, "credentials.json"), TokenFile: filepath.Join(dir, "token.json")}
	if err := os.WriteFile(creds.File, []byte(clientSecret), 0600); err != nil {
		t.Fatal(err)
	}
	tok := &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: time.Now().Add(time.Hour)}
	if err := saveToken(creds.TokenFile, tok); err != nil {
		t.Fatalf("saveToken failed: %v", err)
	}

	client, err := GetClient(context.Background(), creds, []string{"scope"})
	if err != nil {
		t.Fatalf("GetClient failed: %v", err)
	}
	if client == nil {
		t.Fatal("Expected an HTTP client")
	}

	loaded, err := tokenFromFile(creds.TokenFile)
	if err != nil {
		t.Fatalf("tokenFromFile failed: %v", err)
	}
	if loaded.AccessToken != "at" || loaded.RefreshToken != "rt" {
		t.Errorf("Unexpected token %+v", loaded)
	}
}

func TestGetClientMissingFile(t *testing.T) {
	_, err := GetClient(context.Background(), Credentials{File: filepath.Join(t.TempDir(), "nope.json")}, nil)
	if err == nil {
		t.Fatal("Expected error for missing credentials file")
	}
}
