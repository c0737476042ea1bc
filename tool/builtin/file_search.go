package builtin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/hupe1980/agentflow/tool"
)

// FileSearchName is the registry name of the file search tool.
const FileSearchName = "file_search"

// MaxFileSearchResults caps the number of returned paths.
const MaxFileSearchResults = 10

var errSearchLimit = errors.New("search limit reached")

// FileSearchArgs is the file search parameter shape.
type FileSearchArgs struct {
	Pattern   string `json:"pattern" description:"Glob pattern, '**/' searches recursively"`
	Directory string `json:"directory,omitempty" description:"Directory relative to the search root"`
}

// NewFileSearch returns a glob based file search confined to root. Paths
// escaping root are rejected.
func NewFileSearch(root string) tool.Tool {
	if root == "" {
		root = "."
	}
	return tool.NewFunctionToolFromStruct(
		FileSearchName,
		"Search for files matching a pattern",
		FileSearchArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			pattern, _ := args["pattern"].(string)
			dir, _ := args["directory"].(string)
			return searchFiles(ctx, root, dir, pattern)
		},
	)
}

func searchFiles(ctx context.Context, root, dir, pattern string) ([]string, error) {
	if pattern == "" {
		return nil, tool.NewToolError(FileSearchName, "pattern must not be empty", tool.CodeInvalidRequest)
	}
	if dir == "" {
		dir = "."
	}
	rel := filepath.Clean(dir)
	if escapes(rel) {
		return nil, tool.NewToolError(FileSearchName, fmt.Sprintf("directory %q escapes the search root", dir), tool.CodeInvalidRequest)
	}
	if escapes(pattern) {
		return nil, tool.NewToolError(FileSearchName, fmt.Sprintf("pattern %q escapes the search root", pattern), tool.CodeInvalidRequest)
	}
	base := filepath.Join(root, rel)

	if !strings.Contains(pattern, "**") {
		globbed, err := filepath.Glob(filepath.Join(base, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob: %w", err)
		}
		matches := make([]string, 0, min(len(globbed), MaxFileSearchResults))
		for _, m := range globbed {
			if len(matches) == MaxFileSearchResults {
				break
			}
			if within(root, m) {
				matches = append(matches, m)
			}
		}
		return matches, nil
	}

	namePattern := filepath.Base(pattern)
	matches := []string{}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(namePattern, d.Name())
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, path)
			if len(matches) >= MaxFileSearchResults {
				return errSearchLimit
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errSearchLimit) {
		return nil, fmt.Errorf("walk: %w", err)
	}
	return matches, nil
}

// escapes reports whether p is absolute or has a ".." element.
func escapes(p string) bool {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return true
	}
	for _, elem := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if elem == ".." {
			return true
		}
	}
	return false
}

// within reports whether path lies under root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
