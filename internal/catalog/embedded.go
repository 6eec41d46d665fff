// SPDX-License-Identifier: MIT

package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"
)

//go:embed songs.lst
var embeddedSongs []byte

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the catalog compiled into the binary. The first call
// parses it; concurrent callers block until that parse finishes and all
// observe the same result.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(bytes.NewReader(embeddedSongs))
		if defaultErr != nil {
			defaultErr = fmt.Errorf("embedded catalog: %w", defaultErr)
		}
	})
	return defaultCat, defaultErr
}

// Open loads path when set and falls back to the embedded catalog otherwise.
func Open(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}
