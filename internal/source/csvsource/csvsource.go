// Package csvsource reads bank CSV exports as a sync data source.
package csvsource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledgerline/ledgerline/internal/model"
)

// Settings read by Source.
const (
	SettingFile   = "file"
	SettingFormat = "format"
)

// DefaultFormat is used when no format setting is given.
const DefaultFormat = "chase"

// Parser converts a bank CSV file into raw transactions.
type Parser interface {
	Parse(r io.Reader, settings map[string]string) (model.TransactionBatch, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&GenericParser{})
	return r
}

// Source serves the rows of one CSV file per sync. The file carries its own
// date range, so the requested window is not applied.
type Source struct {
	registry *Registry
}

// New creates a Source over registry.
func New(registry *Registry) *Source {
	return &Source{registry: registry}
}

func (s *Source) DiscoverTransactions(ctx context.Context, _ []string, _, _ time.Time, settings map[string]string) (model.TransactionBatch, error) {
	path := settings[SettingFile]
	if path == "" {
		return model.TransactionBatch{}, fmt.Errorf("setting %s is required", SettingFile)
	}
	format := settings[SettingFormat]
	if format == "" {
		format = DefaultFormat
	}
	p := s.registry.Get(format)
	if p == nil {
		return model.TransactionBatch{}, fmt.Errorf("unknown CSV format %q", format)
	}
	if err := ctx.Err(); err != nil {
		return model.TransactionBatch{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return model.TransactionBatch{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	batch, err := p.Parse(f, settings)
	if err != nil {
		return model.TransactionBatch{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return batch, nil
}

// DiscoverBalances reports nothing; CSV exports carry no authoritative
// balance.
func (s *Source) DiscoverBalances(context.Context, []string, map[string]string) (model.BalanceBatch, error) {
	return model.BalanceBatch{}, nil
}

// processedDir is the subdirectory of the inbox for imported files.
const processedDir = "processed"

// Scan returns CSV files directly inside dir.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from dir to dir/processed/.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, fileName)
	dstDir := filepath.Join(dir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
