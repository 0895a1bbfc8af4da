package cvtree

import (
	"testing"
)

// mustParse parses a YAML or JSON document for a test, failing it on error.
func mustParse(tb testing.TB, doc string) *Node {
	tb.Helper()
	n, err := Parse([]byte(doc))
	if err != nil {
		tb.Fatalf("Parse() error = %v", err)
	}
	return n
}

const sampleCV = `
name: Ada Lovelace
profiles:
  url: https://example.com/ada
  network: GitHub
  handle:
    value: ada
    url: https://github.com/ada
skills:
  value: [Go, Python]
  tags: []
research:
  value: Analytical engines
  explicit: true
  tags: [cs]
modelling:
  value: Neural nets
  explicit: true
  tags: [ml]
work:
  - company: Babbage & Co
    position: Engineer
    tags: [cs]
    highlights:
      - Wrote the first program
      - value: Internal tooling
        tags: [private]
  - company: Secret Lab
    position: Lead
    tags: [private]
education: BSc, MSc
`
