package archive

import (
	"archive/tar"
	"fmt"
	"os"
	"sort"
	"time"
)

// WriteTar writes files into a tar archive at path, entries sorted by
// name.
func WriteTar(path string, files map[string][]byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tar.NewWriter(f)
	for _, name := range names {
		data := files[name]
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: time.Unix(0, 0),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return tw.Close()
}

// WritePackage writes a plugin archive holding desc and one empty code
// entry per type name.
func WritePackage(path string, desc *Descriptor, typeNames ...string) error {
	data, err := desc.Marshal()
	if err != nil {
		return err
	}
	files := map[string][]byte{DescriptorName: data}
	for _, n := range typeNames {
		files[EntryName(n)] = nil
	}
	return WriteTar(path, files)
}
