package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileToolOption configures the builtin file tools.
type FileToolOption func(*fileToolConfig)

type fileToolConfig struct {
	basePath    string
	maxFileSize int64
}

// WithBasePath confines file operations to a directory. Paths are resolved
// relative to it and may not escape it.
func WithBasePath(path string) FileToolOption {
	return func(c *fileToolConfig) {
		c.basePath = path
	}
}

// WithMaxFileSize caps read and write sizes. Default is 10MB.
func WithMaxFileSize(bytes int64) FileToolOption {
	return func(c *fileToolConfig) {
		c.maxFileSize = bytes
	}
}

func applyFileOpts(opts []FileToolOption) *fileToolConfig {
	cfg := &fileToolConfig{
		maxFileSize: 10 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *fileToolConfig) resolvePath(path string) (string, error) {
	path = filepath.Clean(path)

	if c.basePath != "" {
		base := filepath.Clean(c.basePath)
		full := filepath.Join(base, path)

		rel, err := filepath.Rel(base, full)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("path %q is outside base path %q", path, base)
		}
		path = full
	}

	return path, nil
}

type readFileArgs struct {
	Path string `json:"path" desc:"File path to read" required:"true"`
}

type writeFileArgs struct {
	Path    string `json:"path" desc:"File path to write" required:"true"`
	Content string `json:"content" desc:"Content to write" required:"true"`
}

type listFilesArgs struct {
	Path string `json:"path" desc:"Directory to list, defaults to the base path"`
}

// ReadFileTool returns a read_file registration.
func ReadFileTool(opts ...FileToolOption) Registration {
	cfg := applyFileOpts(opts)
	return Func("read_file", "Read the contents of a file",
		func(ctx context.Context, args readFileArgs) (string, error) {
			path, err := cfg.resolvePath(args.Path)
			if err != nil {
				return "", err
			}

			info, err := os.Stat(path)
			if err != nil {
				return "", err
			}
			if info.Size() > cfg.maxFileSize {
				return "", fmt.Errorf("file %q exceeds maximum size %d bytes", args.Path, cfg.maxFileSize)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	)
}

// WriteFileTool returns a write_file registration.
func WriteFileTool(opts ...FileToolOption) Registration {
	cfg := applyFileOpts(opts)
	return Func("write_file", "Write content to a file, creating parent directories as needed",
		func(ctx context.Context, args writeFileArgs) (string, error) {
			if int64(len(args.Content)) > cfg.maxFileSize {
				return "", fmt.Errorf("content exceeds maximum size %d bytes", cfg.maxFileSize)
			}

			path, err := cfg.resolvePath(args.Path)
			if err != nil {
				return "", err
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", err
			}
			if err := os.WriteFile(path, []byte(args.Content), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path), nil
		},
	)
}

// ListFilesTool returns a list_files registration.
func ListFilesTool(opts ...FileToolOption) Registration {
	cfg := applyFileOpts(opts)
	return Func("list_files", "List the entries of a directory",
		func(ctx context.Context, args listFilesArgs) (string, error) {
			dir := args.Path
			if dir == "" {
				dir = "."
			}
			path, err := cfg.resolvePath(dir)
			if err != nil {
				return "", err
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				return "", err
			}

			var sb strings.Builder
			for _, e := range entries {
				if e.IsDir() {
					sb.WriteString(e.Name() + "/\n")
					continue
				}
				sb.WriteString(e.Name() + "\n")
			}
			if sb.Len() == 0 {
				return "(empty directory)", nil
			}
			return sb.String(), nil
		},
	)
}
