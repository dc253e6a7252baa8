package tool

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	readDefaultLimit = 2000
	readMaxLineLen   = 2000
)

// ReadFile returns file content with line numbers.
type ReadFile struct{}

func NewReadFile() *ReadFile { return &ReadFile{} }

func (r *ReadFile) Spec() Spec {
	return Spec{
		Name:        "read_file",
		Description: "Read a file and return its content with line numbers.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute path of the file to read",
				},
				"offset": map[string]any{
					"type":        "number",
					"description": "First line to return (1-based)",
				},
				"limit": map[string]any{
					"type":        "number",
					"description": "Maximum lines to return (default 2000)",
				},
			},
			"required": []string{"path"},
		},
	}
}

func (r *ReadFile) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return &Result{Error: ErrInvalidArgs}, ErrInvalidArgs
	}
	offset := intArg(args, "offset", 0)
	limit := intArg(args, "limit", readDefaultLimit)

	content, err := readLines(path, offset, limit)
	if err != nil {
		return &Result{Title: filepath.Base(path), Output: err.Error(), Error: err}, nil
	}
	return &Result{
		Title:    filepath.Base(path),
		Output:   content,
		Metadata: map[string]any{"path": path},
	}, nil
}

// WriteFile writes content to a path, creating parent directories.
type WriteFile struct{}

func NewWriteFile() *WriteFile { return &WriteFile{} }

func (w *WriteFile) Spec() Spec {
	return Spec{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories as needed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute path of the file to write",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Full file content",
				},
			},
			"required": []string{"path", "content"},
		},
	}
}

func (w *WriteFile) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return &Result{Error: ErrInvalidArgs}, ErrInvalidArgs
	}
	content, ok := args["content"].(string)
	if !ok {
		return &Result{Error: ErrInvalidArgs}, ErrInvalidArgs
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &Result{Title: filepath.Base(path), Output: err.Error(), Error: err}, nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return &Result{Title: filepath.Base(path), Output: err.Error(), Error: err}, nil
	}
	return &Result{
		Title:    filepath.Base(path),
		Output:   fmt.Sprintf("Wrote %d bytes to %s", len(content), path),
		Metadata: map[string]any{"path": path, "bytes": len(content)},
	}, nil
}

// Glob finds files matching a doublestar pattern.
type Glob struct {
	workDir string
}

func NewGlob(workDir string) *Glob { return &Glob{workDir: workDir} }

func (g *Glob) Spec() Spec {
	return Spec{
		Name:        "glob",
		Description: "Find files matching a glob pattern. Use **/*.go for recursive search.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Glob pattern (e.g. **/*.go, src/**/*.ts)",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Base directory (default: working directory)",
				},
			},
			"required": []string{"pattern"},
		},
	}
}

func (g *Glob) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	pattern, ok := args["pattern"].(string)
	if !ok || pattern == "" {
		return &Result{Error: ErrInvalidArgs}, ErrInvalidArgs
	}
	base := g.workDir
	if p, ok := args["path"].(string); ok && p != "" {
		base = p
	}

	var matches []string
	err := doublestar.GlobWalk(os.DirFS(base), pattern, func(path string, d fs.DirEntry) error {
		if !d.IsDir() {
			matches = append(matches, filepath.Join(base, path))
		}
		return nil
	})
	if err != nil {
		return &Result{Title: "glob " + pattern, Output: err.Error(), Error: err}, nil
	}

	output := strings.Join(matches, "\n")
	if len(matches) == 0 {
		output = "No files found"
	}
	return &Result{
		Title:    "glob " + pattern,
		Output:   output,
		Metadata: map[string]any{"pattern": pattern, "count": len(matches)},
	}, nil
}

// ListDir lists a directory's entries with sizes.
type ListDir struct {
	workDir string
}

func NewListDir(workDir string) *ListDir { return &ListDir{workDir: workDir} }

func (l *ListDir) Spec() Spec {
	return Spec{
		Name:        "list_dir",
		Description: "List the entries of a directory.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory to list (default: working directory)",
				},
			},
		},
	}
}

func (l *ListDir) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	path := l.workDir
	if p, ok := args["path"].(string); ok && p != "" {
		path = p
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return &Result{Title: path, Output: err.Error(), Error: err}, nil
	}

	var sb strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			sb.WriteString(e.Name() + "/\n")
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "%s  %s\n", e.Name(), formatSize(info.Size()))
	}
	return &Result{
		Title:    path,
		Output:   sb.String(),
		Metadata: map[string]any{"path": path, "entries": len(entries)},
	}, nil
}

func readLines(path string, offset, limit int) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if offset > 0 && lineNum < offset {
			continue
		}
		if len(lines) >= limit {
			break
		}
		line := scanner.Text()
		if len(line) > readMaxLineLen {
			line = line[:readMaxLineLen] + "..."
		}
		lines = append(lines, fmt.Sprintf("%6d\t%s", lineNum, line))
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}

var (
	_ Executor = (*ReadFile)(nil)
	_ Executor = (*WriteFile)(nil)
	_ Executor = (*Glob)(nil)
	_ Executor = (*ListDir)(nil)
)
