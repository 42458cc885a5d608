package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/alexhholmes/abilayout/internal/descriptor"
)

// Alias declares that Name has the layout of Target
type Alias struct {
	Name   string
	Target descriptor.TypeRef
}

// Document is the content of one descriptor file
type Document struct {
	Path     string
	Version  int // GAPI parser_version, 0 for Go sources
	Types    []*descriptor.Type
	Aliases  []Alias
	Includes []string // documents whose types are referenced but not generated
}

// ParseFile parses a descriptor file, choosing the front end by extension
func ParseFile(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return ParseSource(path, nil)
	case ".xml", ".gapi", ".api":
		return ParseGAPIFile(path)
	default:
		return nil, fmt.Errorf("%s: unknown descriptor format", path)
	}
}

// LoadPackages parses the Go files of every package matching patterns
func LoadPackages(patterns ...string) ([]*Document, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedCompiledGoFiles | packages.NeedSyntax,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, err
	}

	var docs []*Document
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			return nil, fmt.Errorf("%s: %v", pkg.PkgPath, pkg.Errors[0])
		}
		for i, file := range pkg.Syntax {
			path := pkg.PkgPath
			if i < len(pkg.CompiledGoFiles) {
				path = pkg.CompiledGoFiles[i]
			}
			doc := &Document{Path: path}
			if err := extractTypes(doc, file); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if len(doc.Types) > 0 || len(doc.Aliases) > 0 {
				docs = append(docs, doc)
			}
		}
	}
	return docs, nil
}
