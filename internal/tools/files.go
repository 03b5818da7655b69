package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/crew/internal/events"
)

// skipDirs are directories recursive listings never descend into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".hg":          true,
}

const maxListEntries = 1000

// resolvePath resolves a relative path against the task workspace carried
// in the context. Absolute paths pass through.
func resolvePath(ctx context.Context, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if ws := events.WorkspaceFromContext(ctx); ws != "" {
		return filepath.Join(ws, path)
	}
	return path
}

// ReadFileTool reads file contents with optional line windowing.
type ReadFileTool struct{}

// NewReadFileTool creates a read_file tool.
func NewReadFileTool() *ReadFileTool {
	return &ReadFileTool{}
}

// ReadFileManifest returns the manifest for the read_file tool.
func ReadFileManifest() *Manifest {
	return &Manifest{
		Name:        "read_file",
		Description: "Read files",
		Tools: []ToolSpec{
			{
				Name:        "read_file",
				Description: "Read a file's contents. Relative paths resolve against the task workspace. Use offset and limit to window large files.",
				Parameters: map[string]ParamSpec{
					"path": {
						Type:        "string",
						Description: "Path of the file to read",
						Required:    true,
					},
					"offset": {
						Type:        "integer",
						Description: "Line to start reading from, zero-based (optional)",
					},
					"limit": {
						Type:        "integer",
						Description: "Maximum number of lines to return (optional)",
					},
				},
			},
		},
	}
}

type readFileInput struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

type readFileOutput struct {
	Content   string `json:"content"`
	Lines     int    `json:"lines"`
	Truncated bool   `json:"truncated"`
}

func (t *ReadFileTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&ReadFileManifest().Tools[0]), nil
}

func (t *ReadFileTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input readFileInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("read_file: parse input: %w", err)
	}
	if input.Path == "" {
		return "", fmt.Errorf("read_file: path is required")
	}

	path := resolvePath(ctx, input.Path)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("read_file: %s is a directory, not a file (use list_dir)", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}

	lines := bytes.Split(data, []byte("\n"))
	total := len(lines)

	truncated := false
	if input.Offset > 0 {
		if input.Offset >= total {
			lines = nil
		} else {
			lines = lines[input.Offset:]
		}
	}
	if input.Limit > 0 && len(lines) > input.Limit {
		lines = lines[:input.Limit]
		truncated = true
	}

	result := readFileOutput{
		Content:   string(bytes.Join(lines, []byte("\n"))),
		Lines:     total,
		Truncated: truncated,
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("read_file: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*ReadFileTool)(nil)

// WriteFileTool writes file contents, creating parent directories unless
// told not to.
type WriteFileTool struct{}

// NewWriteFileTool creates a write_file tool.
func NewWriteFileTool() *WriteFileTool {
	return &WriteFileTool{}
}

// WriteFileManifest returns the manifest for the write_file tool.
func WriteFileManifest() *Manifest {
	return &Manifest{
		Name:        "write_file",
		Description: "Write files",
		Tools: []ToolSpec{
			{
				Name:        "write_file",
				Description: "Write content to a file, replacing it if it exists. Relative paths resolve against the task workspace. Parent directories are created unless create_dirs is false.",
				Parameters: map[string]ParamSpec{
					"path": {
						Type:        "string",
						Description: "Path of the file to write",
						Required:    true,
					},
					"content": {
						Type:        "string",
						Description: "The content to write",
						Required:    true,
					},
					"create_dirs": {
						Type:        "boolean",
						Description: "Create missing parent directories (default: true)",
					},
				},
			},
		},
	}
}

type writeFileInput struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	CreateDirs *bool  `json:"create_dirs"`
}

type writeFileOutput struct {
	Path         string `json:"path"`
	BytesWritten int    `json:"bytes_written"`
}

func (t *WriteFileTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&WriteFileManifest().Tools[0]), nil
}

func (t *WriteFileTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input writeFileInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("write_file: parse input: %w", err)
	}
	if input.Path == "" {
		return "", fmt.Errorf("write_file: path is required")
	}

	path, err := filepath.Abs(resolvePath(ctx, input.Path))
	if err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}

	createDirs := true
	if input.CreateDirs != nil {
		createDirs = *input.CreateDirs
	}
	if createDirs {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("write_file: create directories: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(input.Content), 0644); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}

	result := writeFileOutput{
		Path:         path,
		BytesWritten: len(input.Content),
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("write_file: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*WriteFileTool)(nil)

// ListDirTool lists directory contents, flat, recursive or by glob.
type ListDirTool struct{}

// NewListDirTool creates a list_dir tool.
func NewListDirTool() *ListDirTool {
	return &ListDirTool{}
}

// ListDirManifest returns the manifest for the list_dir tool.
func ListDirManifest() *Manifest {
	return &Manifest{
		Name:        "list_dir",
		Description: "List directories",
		Tools: []ToolSpec{
			{
				Name:        "list_dir",
				Description: "List the contents of a directory. Pass a glob pattern like **/*.go to match files, or recursive to walk the whole tree.",
				Parameters: map[string]ParamSpec{
					"path": {
						Type:        "string",
						Description: "Path of the directory to list",
						Required:    true,
					},
					"pattern": {
						Type:        "string",
						Description: "Glob pattern to match, relative to path (optional, supports **)",
					},
					"recursive": {
						Type:        "boolean",
						Description: "Walk subdirectories (default: false)",
					},
				},
			},
		},
	}
}

type listDirInput struct {
	Path      string `json:"path"`
	Pattern   string `json:"pattern"`
	Recursive bool   `json:"recursive"`
}

type listDirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int64  `json:"size"`
}

type listDirOutput struct {
	Entries []listDirEntry `json:"entries"`
	Total   int            `json:"total"`
}

func (t *ListDirTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return specToToolInfo(&ListDirManifest().Tools[0]), nil
}

func (t *ListDirTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input listDirInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("list_dir: parse input: %w", err)
	}
	if input.Path == "" {
		return "", fmt.Errorf("list_dir: path is required")
	}

	dir := resolvePath(ctx, input.Path)

	var entries []listDirEntry
	var err error
	switch {
	case input.Pattern != "":
		entries, err = listDirGlob(dir, input.Pattern)
	case input.Recursive:
		entries, err = listDirRecursive(dir)
	default:
		entries, err = listDirFlat(dir)
	}
	if err != nil {
		return "", fmt.Errorf("list_dir: %w", err)
	}

	result := listDirOutput{Entries: entries, Total: len(entries)}
	if result.Entries == nil {
		result.Entries = []listDirEntry{}
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("list_dir: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*ListDirTool)(nil)

func listDirGlob(dir, pattern string) ([]listDirEntry, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	var entries []listDirEntry
	for _, match := range matches {
		if len(entries) >= maxListEntries {
			break
		}
		info, err := os.Lstat(match)
		if err != nil {
			continue
		}
		entries = append(entries, listDirEntry{
			Name: filepath.Base(match),
			Path: match,
			Type: fileType(info.IsDir()),
			Size: info.Size(),
		})
	}
	return entries, nil
}

func listDirFlat(dir string) ([]listDirEntry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var entries []listDirEntry
	for _, de := range dirEntries {
		if len(entries) >= maxListEntries {
			break
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, listDirEntry{
			Name: de.Name(),
			Path: filepath.Join(dir, de.Name()),
			Type: fileType(de.IsDir()),
			Size: info.Size(),
		})
	}
	return entries, nil
}

func listDirRecursive(dir string) ([]listDirEntry, error) {
	var entries []listDirEntry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == dir {
			return nil
		}
		if d.IsDir() && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if len(entries) >= maxListEntries {
			return filepath.SkipAll
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, listDirEntry{
			Name: d.Name(),
			Path: path,
			Type: fileType(d.IsDir()),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func fileType(isDir bool) string {
	if isDir {
		return "dir"
	}
	return "file"
}
