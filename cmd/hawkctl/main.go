package main

// Local operations against the same stack the API uses:
//   go run ./cmd/hawkctl run --workflow doc-summary --file notes.pdf --pdf out.pdf
//   go run ./cmd/hawkctl report result.json --out report.pdf
//   go run ./cmd/hawkctl history list --session cli
//   go run ./cmd/hawkctl migrate

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
