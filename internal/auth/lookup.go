package auth

import (
	"os"
	"path/filepath"
)

// DefaultCredentialsPath returns the path to the credentials file.
// It checks the REPOCTX_CREDENTIALS_FILE env var first; if set, that
// path is returned. Otherwise it returns ~/.repoctx/credentials.json.
func DefaultCredentialsPath() string {
	if p := os.Getenv("REPOCTX_CREDENTIALS_FILE"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".repoctx", "credentials.json")
}

// LookupCredential resolves the credential for serverURL using the
// following priority:
//  1. flagToken (from --auth-token flag) — used if non-empty
//  2. REPOCTX_ACCESS_TOKEN env var — used if set
//  3. Credentials file at credPath — used if it has an entry for serverURL
//
// Returns a zero ServerCredential if nothing is found.
func LookupCredential(flagToken, serverURL, credPath string) ServerCredential {
	// 1. Explicit flag
	if flagToken != "" {
		return ServerCredential{AuthType: TypeBearer, Token: flagToken}
	}

	// 2. Environment variable
	if t := os.Getenv("REPOCTX_ACCESS_TOKEN"); t != "" {
		return ServerCredential{AuthType: TypeBearer, Token: t}
	}

	// 3. Credentials file
	if credPath == "" {
		return ServerCredential{}
	}
	creds, err := LoadCredentials(credPath)
	if err != nil {
		return ServerCredential{}
	}
	sc, _ := GetCredential(creds, serverURL)
	return sc
}
