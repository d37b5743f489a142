package auth

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// ---------------------------------------------------------------------------
// LoadCredentials tests
// ---------------------------------------------------------------------------

func TestLoadCredentials_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")

	data := `{"version":1,"servers":{"https://mcp.example.com":{"auth_type":"bearer","token":"tok123"}}}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials returned error: %v", err)
	}
	sc, ok := got.Servers["https://mcp.example.com"]
	if !ok {
		t.Fatal("server entry not found")
	}
	if sc.Token != "tok123" {
		t.Errorf("Token = %q, want %q", sc.Token, "tok123")
	}
	if sc.AuthType != "bearer" {
		t.Errorf("AuthType = %q, want %q", sc.AuthType, "bearer")
	}
}

func TestLoadCredentials_NonExistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")

	got, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials returned error for missing file: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if got.Servers == nil {
		t.Fatal("Servers map is nil, want empty map")
	}
	if len(got.Servers) != 0 {
		t.Errorf("Servers has %d entries, want 0", len(got.Servers))
	}
}

func TestLoadCredentials_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")

	if err := os.WriteFile(path, []byte("{not json!!}"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadCredentials(path); err == nil {
		t.Fatal("LoadCredentials should return error for malformed JSON")
	}
}

// ---------------------------------------------------------------------------
// SaveCredentials tests
// ---------------------------------------------------------------------------

func TestSaveCredentials_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "credentials.json")

	creds := &CredentialsFile{
		Version: 1,
		Servers: map[string]ServerCredential{
			"https://example.com": {AuthType: "bearer", Token: "abc"},
		},
	}
	if err := SaveCredentials(path, creds); err != nil {
		t.Fatalf("SaveCredentials returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cannot read saved file: %v", err)
	}
	var loaded CredentialsFile
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("cannot parse saved file: %v", err)
	}
	if loaded.Servers["https://example.com"].Token != "abc" {
		t.Errorf("Token = %q, want %q", loaded.Servers["https://example.com"].Token, "abc")
	}
}

func TestSaveCredentials_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	creds := &CredentialsFile{Version: 1, Servers: make(map[string]ServerCredential)}
	if err := SaveCredentials(path, creds); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != fs.FileMode(0600) {
		t.Errorf("file permissions = %04o, want 0600", perm)
	}
}

// ---------------------------------------------------------------------------
// GetToken / SetToken tests
// ---------------------------------------------------------------------------

func TestSetAndGetToken(t *testing.T) {
	creds := &CredentialsFile{Version: 1, Servers: make(map[string]ServerCredential)}
	SetToken(creds, "https://example.com", "mytoken")

	if got := GetToken(creds, "https://example.com"); got != "mytoken" {
		t.Errorf("GetToken = %q, want %q", got, "mytoken")
	}
	if sc := creds.Servers["https://example.com"]; sc.AuthType != "bearer" {
		t.Errorf("AuthType = %q, want %q", sc.AuthType, "bearer")
	}
}

func TestGetToken_NilMap(t *testing.T) {
	creds := &CredentialsFile{Version: 1}
	if got := GetToken(creds, "https://example.com"); got != "" {
		t.Errorf("GetToken with nil map = %q, want empty string", got)
	}
}

func TestSetToken_NilServersMap(t *testing.T) {
	creds := &CredentialsFile{Version: 1}
	SetToken(creds, "https://example.com", "tok")

	if creds.Servers == nil {
		t.Fatal("Servers should be initialized, got nil")
	}
	if got := GetToken(creds, "https://example.com"); got != "tok" {
		t.Errorf("GetToken = %q, want %q", got, "tok")
	}
}

// ---------------------------------------------------------------------------
// LookupCredential tests
// ---------------------------------------------------------------------------

func TestLookupCredential_FlagWins(t *testing.T) {
	t.Setenv("REPOCTX_ACCESS_TOKEN", "env-token")

	sc := LookupCredential("flag-token", "https://example.com", "")
	if sc.Token != "flag-token" || sc.AuthType != "bearer" {
		t.Errorf("credential = %+v, want flag token", sc)
	}
}

func TestLookupCredential_Env(t *testing.T) {
	t.Setenv("REPOCTX_ACCESS_TOKEN", "env-token")

	sc := LookupCredential("", "https://example.com", "")
	if sc.Token != "env-token" {
		t.Errorf("Token = %q, want %q", sc.Token, "env-token")
	}
}

func TestLookupCredential_File(t *testing.T) {
	t.Setenv("REPOCTX_ACCESS_TOKEN", "")
	path := filepath.Join(t.TempDir(), "credentials.json")

	creds := &CredentialsFile{Version: 1}
	creds.Servers = map[string]ServerCredential{
		"https://example.com": {AuthType: "client_credentials", ClientID: "id", TokenURL: "https://auth/token"},
	}
	if err := SaveCredentials(path, creds); err != nil {
		t.Fatal(err)
	}

	sc := LookupCredential("", "https://example.com", path)
	if sc.AuthType != "client_credentials" || sc.ClientID != "id" {
		t.Errorf("credential = %+v", sc)
	}

	if other := LookupCredential("", "https://other.example.com", path); other.AuthType != "" {
		t.Errorf("unexpected credential for unknown server: %+v", other)
	}
}

func TestDefaultCredentialsPath_EnvOverride(t *testing.T) {
	t.Setenv("REPOCTX_CREDENTIALS_FILE", "/custom/creds.json")
	if got := DefaultCredentialsPath(); got != "/custom/creds.json" {
		t.Errorf("DefaultCredentialsPath() = %q", got)
	}
}
