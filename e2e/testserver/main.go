// Package main runs the repository test server on localhost for manual
// runs of the CLI:
//
//	go run ./e2e/testserver
//	repoctx context "parse JSON" --workspace acme --repository widgets
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/thellimist/repoctx/e2e/reposerver"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "listen address")
	flag.Parse()

	srv := reposerver.New("acme", "widgets", []reposerver.File{
		{Path: "README.md", Description: "Project overview", Content: "# widgets\n\nA small widget library.\n"},
		{Path: "parser/json.go", Description: "JSON parser", Content: "package parser\n\n// ParseJSON decodes a widget document.\nfunc ParseJSON(b []byte) (*Widget, error) { return decode(b) }\n"},
		{Path: "parser/json_test.go", Content: "package parser\n\nimport \"testing\"\n\nfunc TestParseJSON(t *testing.T) {}\n"},
		{Path: "widget.go", Description: "Widget model", Content: "package parser\n\ntype Widget struct{ Name string }\n"},
	})

	mux := http.NewServeMux()
	mux.Handle("/mcp", srv)
	log.Printf("serving MCP on http://%s/mcp", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}
