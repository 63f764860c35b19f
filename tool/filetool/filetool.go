// Package filetool implements sandboxed file operation tools rooted at a
// configured base directory: file.read, file.write, file.list, file.delete.
package filetool

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/dwasnwk/oktyv/errors"
	"github.com/dwasnwk/oktyv/tool"
)

// Tool names.
const (
	ReadName   = "file.read"
	WriteName  = "file.write"
	ListName   = "file.list"
	DeleteName = "file.delete"
)

// Config configures the file tools.
type Config struct {
	// BasePath is the directory all paths are resolved under. Escaping it is
	// rejected.
	BasePath string `yaml:"base_path" mapstructure:"base_path"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BasePath == "" {
		c.BasePath = "./data"
	}
}

// FS resolves sandboxed paths and backs all four file tools.
type FS struct {
	base string
}

// NewFS creates the sandbox root, creating the directory if needed.
func NewFS(cfg Config) (*FS, error) {
	abs, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, apperrors.InvalidInput("base_path", err.Error())
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, apperrors.Internal(err)
	}
	return &FS{base: abs}, nil
}

// Tools returns all file tools backed by this sandbox.
func (f *FS) Tools() []tool.Tool {
	return []tool.Tool{
		&readTool{fs: f},
		&writeTool{fs: f},
		&listTool{fs: f},
		&deleteTool{fs: f},
	}
}

// resolve joins a relative path under the base and rejects escapes.
func (f *FS) resolve(rel string) (string, error) {
	full := filepath.Join(f.base, filepath.Clean("/"+rel))
	if full != f.base && !strings.HasPrefix(full, f.base+string(filepath.Separator)) {
		return "", apperrors.InvalidInput("path", "path escapes the configured base directory")
	}
	return full, nil
}

type readTool struct{ fs *FS }

func (t *readTool) Name() string { return ReadName }
func (t *readTool) IsAvailable(_ context.Context) bool { return true }

func (t *readTool) Invoke(_ context.Context, params map[string]any) (any, error) {
	rel, err := tool.StringParam(params, "path")
	if err != nil {
		return nil, err
	}
	full, err := t.fs.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("file", rel)
		}
		return nil, apperrors.Internal(err)
	}
	return map[string]any{"path": rel, "content": string(data), "size": len(data)}, nil
}

type writeTool struct{ fs *FS }

func (t *writeTool) Name() string { return WriteName }
func (t *writeTool) IsAvailable(_ context.Context) bool { return true }

func (t *writeTool) Invoke(_ context.Context, params map[string]any) (any, error) {
	rel, err := tool.StringParam(params, "path")
	if err != nil {
		return nil, err
	}
	content, err := tool.StringParam(params, "content")
	if err != nil {
		return nil, err
	}
	appendMode, err := tool.OptBoolParam(params, "append", false)
	if err != nil {
		return nil, err
	}

	full, err := t.fs.resolve(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return nil, apperrors.Internal(err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(full, flags, 0o640)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	defer func() { _ = file.Close() }()

	n, err := file.WriteString(content)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return map[string]any{"path": rel, "written": n}, nil
}

type listTool struct{ fs *FS }

func (t *listTool) Name() string { return ListName }
func (t *listTool) IsAvailable(_ context.Context) bool { return true }

func (t *listTool) Invoke(_ context.Context, params map[string]any) (any, error) {
	rel, err := tool.OptStringParam(params, "path", ".")
	if err != nil {
		return nil, err
	}
	full, err := t.fs.resolve(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("directory", rel)
		}
		return nil, apperrors.Internal(err)
	}

	files := make([]any, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, map[string]any{
			"name": entry.Name(),
			"dir":  entry.IsDir(),
			"size": info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].(map[string]any)["name"].(string) < files[j].(map[string]any)["name"].(string)
	})
	return map[string]any{"path": rel, "entries": files}, nil
}

type deleteTool struct{ fs *FS }

func (t *deleteTool) Name() string { return DeleteName }
func (t *deleteTool) IsAvailable(_ context.Context) bool { return true }

func (t *deleteTool) Invoke(_ context.Context, params map[string]any) (any, error) {
	rel, err := tool.StringParam(params, "path")
	if err != nil {
		return nil, err
	}
	full, err := t.fs.resolve(rel)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("file", rel)
		}
		return nil, apperrors.Internal(err)
	}
	return map[string]any{"path": rel, "deleted": true}, nil
}
