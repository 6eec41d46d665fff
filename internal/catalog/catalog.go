// SPDX-License-Identifier: MIT

// Package catalog holds the static song -> (artist, duration) data the
// listener simulators draw from.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrMalformedLine is returned for a line that is not song::artist::seconds.
	ErrMalformedLine = errors.New("malformed catalog line")
	// ErrEmpty is returned when the source holds no songs.
	ErrEmpty = errors.New("catalog is empty")
)

const separator = "::"

// Song is one catalog entry.
type Song struct {
	Title           string
	Artist          string
	DurationSeconds int
}

// Rand is the random source RandomSong draws from. *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	IntN(n int) int
}

// Catalog is immutable after construction and safe for concurrent reads.
type Catalog struct {
	songs []Song
	index map[string]int
}

// Parse reads newline-delimited song::artist::seconds records. Blank lines
// are ignored; anything else that does not parse is an error.
func Parse(r io.Reader) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		song, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if _, dup := c.index[song.Title]; dup {
			return nil, fmt.Errorf("line %d: %w: duplicate song %q", lineNo, ErrMalformedLine, song.Title)
		}
		c.index[song.Title] = len(c.songs)
		c.songs = append(c.songs, song)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if len(c.songs) == 0 {
		return nil, ErrEmpty
	}
	return c, nil
}

func parseLine(line string) (Song, error) {
	parts := strings.Split(line, separator)
	if len(parts) != 3 {
		return Song{}, fmt.Errorf("%w: want 3 fields, got %d", ErrMalformedLine, len(parts))
	}
	title := strings.TrimSpace(parts[0])
	artist := strings.TrimSpace(parts[1])
	if title == "" || artist == "" {
		return Song{}, fmt.Errorf("%w: empty song or artist", ErrMalformedLine)
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return Song{}, fmt.Errorf("%w: duration: %w", ErrMalformedLine, err)
	}
	if seconds <= 0 {
		return Song{}, fmt.Errorf("%w: duration must be positive, got %d", ErrMalformedLine, seconds)
	}
	return Song{Title: title, Artist: artist, DurationSeconds: seconds}, nil
}

// Load parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied catalog path
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

// Len returns the number of songs.
func (c *Catalog) Len() int {
	return len(c.songs)
}

// Songs returns a copy of all entries in file order.
func (c *Catalog) Songs() []Song {
	out := make([]Song, len(c.songs))
	copy(out, c.songs)
	return out
}

// Lookup returns the entry for a song title.
func (c *Catalog) Lookup(title string) (Song, bool) {
	i, ok := c.index[title]
	if !ok {
		return Song{}, false
	}
	return c.songs[i], true
}

// RandomSong draws a song uniformly.
func (c *Catalog) RandomSong(r Rand) Song {
	return c.songs[r.IntN(len(c.songs))]
}

// ArtistOf returns the artist of a song, or "" for an unknown title.
func (c *Catalog) ArtistOf(title string) string {
	s, _ := c.Lookup(title)
	return s.Artist
}

// DurationSecondsOf returns the song length, or 0 for an unknown title.
func (c *Catalog) DurationSecondsOf(title string) int {
	s, _ := c.Lookup(title)
	return s.DurationSeconds
}
