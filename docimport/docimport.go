// CLAUDE:SUMMARY Core import engine converting docx bytes into a content tree, section outline, and metadata.
// Package docimport converts an uploaded word-processor document into a
// structured rich-text tree plus a hierarchical section outline with stable
// anchors.
//
// The pipeline has two sequential stages and a post-pass: a structural
// scanner classifies each body block (heading, list item, numbered item,
// table, plain paragraph), a node builder converts each block into a content
// node — emitting a section descriptor per heading — and a final pass merges
// adjacent same-kind one-item lists.
//
// Every stage is pure CPU/memory work with no I/O of its own. An Importer
// holds no mutable state across calls, so one instance may serve concurrent
// imports.
//
// Usage:
//
//	imp := docimport.New(docimport.Config{})
//	res, err := imp.Import(ctx, fileBytes)
//	fmt.Println(len(res.Sections), "sections")
package docimport

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hazyhaar/cahier/idgen"
	"github.com/hazyhaar/cahier/safe"
)

// Importer is the document import engine.
type Importer struct {
	cfg    Config
	logger *slog.Logger
	anchor idgen.Generator
}

// Config configures the importer.
type Config struct {
	// MaxFileSize is the maximum document size to process (default: 50 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// BaseDir, when set, confines ImportFile to paths under this directory.
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// AnchorID generates heading anchors (default: 8-char random anchors).
	AnchorID idgen.Generator `json:"-" yaml:"-"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 50 * 1024 * 1024
	}
	if c.AnchorID == nil {
		c.AnchorID = idgen.Anchor()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New creates an Importer with the given configuration.
func New(cfg Config) *Importer {
	cfg.defaults()
	return &Importer{
		cfg:    cfg,
		logger: cfg.Logger,
		anchor: cfg.AnchorID,
	}
}

// Import converts raw docx bytes. Container and markup failures surface as
// errors before any block is classified; after that point conversion always
// succeeds — structural absence yields empty-but-valid substructures, so a
// document with zero body elements returns an empty doc node and an empty
// section list, not an error.
func (imp *Importer) Import(ctx context.Context, data []byte) (*Result, error) {
	if int64(len(data)) > imp.cfg.MaxFileSize {
		return nil, fmt.Errorf("document too large: %d bytes (max %d)", len(data), imp.cfg.MaxFileSize)
	}

	blocks, meta, err := parseArchive(data)
	if err != nil {
		return nil, err
	}

	nodes, sections := buildNodes(blocks, imp.anchor)
	nodes = mergeAdjacentLists(nodes)

	imp.logger.Debug("document imported",
		"blocks", len(blocks), "nodes", len(nodes), "sections", len(sections))

	return &Result{
		Content:  Node{Type: NodeDoc, Content: nodes},
		Sections: sections,
		Metadata: meta,
	}, nil
}

// ImportFile reads and converts a docx file from disk. With a BaseDir
// configured, paths escaping it are rejected before touching the filesystem.
func (imp *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	if imp.cfg.BaseDir != "" {
		resolved, err := safe.SafePath(imp.cfg.BaseDir, path)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", path, err)
		}
		path = resolved
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > imp.cfg.MaxFileSize {
		return nil, fmt.Errorf("document too large: %d bytes (max %d)", info.Size(), imp.cfg.MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	res, err := imp.Import(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return res, nil
}
