// SPDX-License-Identifier: MIT

package player

import "github.com/twincitiesguy/pravega-music-demo/internal/songevent"

// Percent chance a listener lets the current song finish, by list type.
var likeSongPercent = map[songevent.ListType]int{
	songevent.Playlist:   82,
	songevent.Station:    23,
	songevent.Album:      32,
	songevent.SingleSong: 100,
}

// Percent chance a listener stays on the current list when skipping a song.
var likeListPercent = map[songevent.ListType]int{
	songevent.Playlist:   94,
	songevent.Station:    87,
	songevent.Album:      83,
	songevent.SingleSong: 0,
}

var playlistNames = []string{
	"Road Trip", "Morning Coffee", "Workout Mix", "Late Night Drive", "Focus Flow",
	"Throwback Hits", "Rainy Day", "Dinner Party", "Summer Anthems", "Deep Cuts",
}

var stationNames = []string{
	"Classic Rock Radio", "Indie Discovery", "Soul & Funk", "Jazz Lounge",
	"Country Roads", "Hip-Hop Essentials", "80s Flashback", "Chill Beats",
}

func (s *Simulator) likesSong(lt songevent.ListType) bool {
	p := likeSongPercent[lt]
	if p >= 100 {
		return true
	}
	return s.chance(p)
}

func (s *Simulator) likesList(lt songevent.ListType) bool {
	p := likeListPercent[lt]
	if p <= 0 {
		return false
	}
	return s.chance(p)
}

// newList picks a list type (Playlist 50, Station 35, SingleSong 13,
// Album 2) and names it where the type carries a name.
func (s *Simulator) newList() songevent.Context {
	roll := s.rng.IntN(100)
	switch {
	case roll < 50:
		return songevent.Context{
			ListType: songevent.Playlist,
			Playlist: playlistNames[s.rng.IntN(len(playlistNames))],
		}
	case roll < 85:
		return songevent.Context{
			ListType: songevent.Station,
			Station:  stationNames[s.rng.IntN(len(stationNames))],
		}
	case roll < 98:
		return songevent.Context{ListType: songevent.SingleSong}
	default:
		return songevent.Context{ListType: songevent.Album}
	}
}

// newSong keeps the list fields of base and fills in a random catalog song.
func (s *Simulator) newSong(base songevent.Context) songevent.Context {
	song := s.catalog.RandomSong(s.rng)
	base.Song = song.Title
	base.Artist = song.Artist
	base.Album = albumOf(song.Artist)
	return base
}

func albumOf(artist string) string {
	return "Best of " + artist
}
