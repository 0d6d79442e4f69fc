package archive

import (
	"bytes"
	"compress/gzip"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/hotplug/component"
)

type hello struct{}

func demoCatalog() *component.Catalog {
	return component.NewCatalog(
		component.Define[hello]("demo.web.Hello", component.AsComponent("")),
		component.Define[hello]("demo.ext.Greeter", component.AsExtension("greeting")),
	)
}

func TestTypeName(t *testing.T) {
	name, ok := TypeName("a/b/C.type")
	require.True(t, ok)
	assert.Equal(t, "a.b.C", name)

	name, ok = TypeName("./C.type")
	require.True(t, ok)
	assert.Equal(t, "C", name)

	_, ok = TypeName("plugin.yml")
	assert.False(t, ok)
	_, ok = TypeName(".type")
	assert.False(t, ok)

	assert.Equal(t, "a/b/C.type", EntryName("a.b.C"))
}

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte("id: shop\nversion: 1.2.0\nprovider: acme\nlicense: MIT\ndescription: demo\n"))
	require.NoError(t, err)
	assert.Equal(t, "shop", d.ID)
	assert.Equal(t, "1.2.0", d.Version)
	assert.Equal(t, "shop", d.CatalogName())

	d.Catalog = "shared"
	assert.Equal(t, "shared", d.CatalogName())

	_, err = ParseDescriptor([]byte("version: 1\n"))
	assert.Error(t, err)
	_, err = ParseDescriptor([]byte("id: a/b\n"))
	assert.Error(t, err)
	_, err = ParseDescriptor([]byte("id: [\n"))
	assert.Error(t, err)
}

func TestReaderOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.tar")
	require.NoError(t, WritePackage(path, &Descriptor{ID: "shop", Version: "1.0.0", Catalog: "demo"},
		"demo.web.Hello", "demo.ext.Greeter"))

	r := NewReader(t.TempDir())
	_, _, err := r.Open(path)
	assert.Error(t, err, "no catalog registered yet")

	r.RegisterCatalog("demo", demoCatalog())
	desc, ctx, err := r.Open(path)
	require.NoError(t, err)
	defer ctx.Close()
	assert.Equal(t, "shop", desc.ID)

	typ, err := r.LoadType(ctx, "demo.web.Hello")
	require.NoError(t, err)
	assert.Equal(t, "demo.web.Hello", typ.Name)

	_, err = r.LoadType(ctx, "demo.Missing")
	assert.ErrorIs(t, err, ErrTypeNotFound)
	_, err = r.LoadType(nil, "demo.web.Hello")
	assert.ErrorIs(t, err, ErrTypeNotFound)

	require.Len(t, ctx.Extensions(), 1)
	assert.Equal(t, "demo.ext.Greeter", ctx.Extensions()[0].Name)
}

func TestReaderEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.tar")
	require.NoError(t, WriteTar(path, map[string][]byte{
		"plugin.yml":          []byte("id: shop\n"),
		"demo/web/Hello.type": nil,
		"static/index.html":   []byte("<h1>hi</h1>"),
	}))

	r := NewReader("")
	entries, err := r.ListEntries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo/web/Hello.type", "plugin.yml", "static/index.html"}, entries)

	data, err := r.ReadBytes(path, "static/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", string(data))

	data, err = r.ReadBytes(path, "/static/index.html")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = r.ReadBytes(path, "missing.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestReaderGzip(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "shop.tar")
	require.NoError(t, WritePackage(plain, &Descriptor{ID: "shop"}, "demo.web.Hello"))

	raw, err := os.ReadFile(plain)
	require.NoError(t, err)
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err = gz.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	zipped := filepath.Join(dir, "shop.tgz")
	require.NoError(t, os.WriteFile(zipped, buf.Bytes(), 0o644))

	entries, err := NewReader("").ListEntries(zipped)
	require.NoError(t, err)
	assert.Contains(t, entries, "demo/web/Hello.type")
}

func TestReaderErrors(t *testing.T) {
	dir := t.TempDir()
	r := NewReader(dir)

	_, _, err := r.Open(filepath.Join(dir, "missing.tar"))
	assert.Error(t, err)

	noDesc := filepath.Join(dir, "nodesc.tar")
	require.NoError(t, WriteTar(noDesc, map[string][]byte{"a.type": nil}))
	_, _, err = r.Open(noDesc)
	assert.Error(t, err)

	badLib := filepath.Join(dir, "lib.tar")
	require.NoError(t, WriteTar(badLib, map[string][]byte{
		"plugin.yml":    []byte("id: lib\nlibrary: lib/plugin.so\n"),
		"lib/plugin.so": []byte("not an elf"),
	}))
	_, _, err = r.Open(badLib)
	assert.Error(t, err)
}

func TestCatalogFromSymbol(t *testing.T) {
	c := demoCatalog()

	got, err := catalogFromSymbol(&c)
	require.NoError(t, err)
	assert.Same(t, c, got)

	got, err = catalogFromSymbol(func() *component.Catalog { return c })
	require.NoError(t, err)
	assert.Same(t, c, got)

	var nilCatalog *component.Catalog
	_, err = catalogFromSymbol(&nilCatalog)
	assert.Error(t, err)
	_, err = catalogFromSymbol("nope")
	assert.Error(t, err)
}

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive("a.tar"))
	assert.True(t, IsArchive("a.tar.gz"))
	assert.True(t, IsArchive("a.tgz"))
	assert.False(t, IsArchive("a.zip"))
}
