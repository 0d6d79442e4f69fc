package archive

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nlepage/go-tarfs"

	"github.com/lcx/hotplug/component"
)

// Reader opens plugin archives. Packages compiled into the host resolve
// their types through catalogs registered by name; packages shipping a Go
// plugin library resolve them through the library.
type Reader struct {
	mu       sync.RWMutex
	catalogs map[string]*component.Catalog
	workDir  string
}

// NewReader creates a reader. Libraries are extracted below workDir, the
// system temp dir when empty.
func NewReader(workDir string) *Reader {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Reader{catalogs: make(map[string]*component.Catalog), workDir: workDir}
}

// RegisterCatalog makes c available to packages naming it. Registering a
// name twice replaces the earlier catalog.
func (r *Reader) RegisterCatalog(name string, c *component.Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogs[name] = c
}

func (r *Reader) catalog(name string) (*component.Catalog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.catalogs[name]
	return c, ok
}

// IsArchive reports whether path has a supported archive extension.
func IsArchive(path string) bool {
	return strings.HasSuffix(path, ".tar") || strings.HasSuffix(path, ".tar.gz") || strings.HasSuffix(path, ".tgz")
}

// openFS loads the whole archive into an in-memory fs.FS. Gzip input is
// detected by its magic bytes.
func openFS(path string) (fs.FS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var src io.Reader = br
	const gzipMagic1, gzipMagic2 = 0x1F, 0x8B
	if head, err := br.Peek(2); err == nil && head[0] == gzipMagic1 && head[1] == gzipMagic2 {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		defer gz.Close()
		src = gz
	}

	tfs, err := tarfs.New(src)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	return tfs, nil
}

// Open reads the descriptor of the archive at path and creates the code
// context of the package.
func (r *Reader) Open(path string) (*Descriptor, CodeContext, error) {
	tfs, err := openFS(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := fs.ReadFile(tfs, DescriptorName)
	if err != nil {
		return nil, nil, fmt.Errorf("archive %s: %w", path, err)
	}
	desc, err := ParseDescriptor(data)
	if err != nil {
		return nil, nil, fmt.Errorf("archive %s: %w", path, err)
	}

	if desc.Library != "" {
		lib, err := r.extract(tfs, desc)
		if err != nil {
			return nil, nil, err
		}
		ctx, err := openLibrary(desc.ID, lib)
		if err != nil {
			return nil, nil, err
		}
		return desc, ctx, nil
	}

	c, ok := r.catalog(desc.CatalogName())
	if !ok {
		return nil, nil, fmt.Errorf("archive %s: no catalog %q registered", path, desc.CatalogName())
	}
	return desc, NewCatalogContext(desc.ID, c), nil
}

func (r *Reader) extract(tfs fs.FS, desc *Descriptor) (string, error) {
	data, err := fs.ReadFile(tfs, desc.Library)
	if err != nil {
		return "", fmt.Errorf("library %s: %w", desc.Library, err)
	}
	dir := filepath.Join(r.workDir, "plugind-libs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := desc.ID
	if desc.Version != "" {
		name += "-" + desc.Version
	}
	out := filepath.Join(dir, name+".so")
	if err := os.WriteFile(out, data, 0o755); err != nil {
		return "", err
	}
	return out, nil
}

// ListEntries returns every file entry of the archive in lexical order.
func (r *Reader) ListEntries(path string) ([]string, error) {
	tfs, err := openFS(path)
	if err != nil {
		return nil, err
	}
	var entries []string
	err = fs.WalkDir(tfs, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			entries = append(entries, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return entries, nil
}

// ReadBytes returns the raw content of entry. A missing entry wraps
// fs.ErrNotExist.
func (r *Reader) ReadBytes(path, entry string) ([]byte, error) {
	tfs, err := openFS(path)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(tfs, strings.TrimPrefix(entry, "/"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("entry %s of %s: %w", entry, path, fs.ErrNotExist)
		}
		return nil, err
	}
	return data, nil
}

// LoadType resolves name in ctx.
func (r *Reader) LoadType(ctx CodeContext, name string) (*component.Type, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: %s without code context", ErrTypeNotFound, name)
	}
	return ctx.LoadType(name)
}
