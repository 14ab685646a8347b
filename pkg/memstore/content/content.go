// Package content reads and writes memory files: markdown bodies with YAML
// front-matter. The index engine never parses front-matter itself; it
// consumes this package's metadata view of a file.
package content

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// Metadata holds the YAML front-matter fields of a memory file. UpdatedAt
// and ExpiresAt are optional; files written before either field existed
// simply lack it, and the absence survives a parse/serialize round trip.
type Metadata struct {
	CreatedAt time.Time  `yaml:"created_at"`
	UpdatedAt *time.Time `yaml:"updated_at,omitempty"`
	Tags      []string   `yaml:"tags,omitempty"`
	ExpiresAt *time.Time `yaml:"expires_at,omitempty"`
}

// MemoryFile is the fully parsed in-memory representation of a memory file.
type MemoryFile struct {
	Meta Metadata
	Body string
}

// Parse deserializes a raw memory file byte slice into a MemoryFile. Both
// delimiters must sit alone on their line: a first line like "---abc" is a
// malformed file, not YAML to be guessed at.
func Parse(raw []byte) (*MemoryFile, error) {
	rest, ok := strings.CutPrefix(string(raw), frontMatterDelimiter+"\n")
	if !ok {
		return nil, fmt.Errorf("content: missing front-matter delimiter")
	}

	var yamlBlock, body string
	padded := "\n" + rest
	if i := strings.Index(padded, "\n"+frontMatterDelimiter+"\n"); i >= 0 {
		yamlBlock = padded[1 : i+1]
		body = strings.TrimPrefix(padded[i+len(frontMatterDelimiter)+2:], "\n")
	} else if strings.HasSuffix(padded, "\n"+frontMatterDelimiter) {
		yamlBlock = padded[1 : len(padded)-len(frontMatterDelimiter)]
	} else {
		return nil, fmt.Errorf("content: unclosed front-matter block")
	}

	var meta Metadata
	if err := yaml.Unmarshal([]byte(yamlBlock), &meta); err != nil {
		return nil, fmt.Errorf("content: front-matter parse error: %w", err)
	}
	return &MemoryFile{Meta: meta, Body: body}, nil
}

// Serialize renders a MemoryFile back to its on-disk byte representation.
func Serialize(m *MemoryFile) ([]byte, error) {
	yamlBytes, err := yaml.Marshal(&m.Meta)
	if err != nil {
		return nil, fmt.Errorf("content: serialize error: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(frontMatterDelimiter + "\n")
	sb.Write(yamlBytes)
	sb.WriteString(frontMatterDelimiter + "\n\n")
	sb.WriteString(m.Body)
	return []byte(sb.String()), nil
}
