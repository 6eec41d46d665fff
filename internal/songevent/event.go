// SPDX-License-Identifier: MIT

// Package songevent defines the session event model emitted by listener
// simulators and its JSON wire form.
package songevent

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Kind is the transition a listener performed.
type Kind string

const (
	Select Kind = "Select"
	Next   Kind = "Next"
	Skip   Kind = "Skip"
	Pause  Kind = "Pause"
	Resume Kind = "Resume"
)

// Kinds lists every event kind in declaration order.
var Kinds = []Kind{Select, Next, Skip, Pause, Resume}

func (k Kind) Valid() bool {
	switch k {
	case Select, Next, Skip, Pause, Resume:
		return true
	}
	return false
}

// ListType is the kind of list a song is being played from.
type ListType string

const (
	Album      ListType = "Album"
	Playlist   ListType = "Playlist"
	Station    ListType = "Station"
	SingleSong ListType = "SingleSong"
)

func (l ListType) Valid() bool {
	switch l {
	case Album, Playlist, Station, SingleSong:
		return true
	}
	return false
}

// Tier is the listener's subscription level.
type Tier string

const (
	FreeTier      Tier = "FreeTier"
	Member        Tier = "Member"
	PartnerMember Tier = "PartnerMember"
	Promo30       Tier = "Promo30"
	Promo90       Tier = "Promo90"
)

// Tiers lists every subscription tier in declaration order.
var Tiers = []Tier{FreeTier, Member, PartnerMember, Promo30, Promo90}

func (t Tier) Valid() bool {
	switch t {
	case FreeTier, Member, PartnerMember, Promo30, Promo90:
		return true
	}
	return false
}

// Context describes what a listener is playing. Playlist is set only for
// Playlist lists and Station only for Station lists.
type Context struct {
	ListType ListType `json:"listType,omitempty"`
	Playlist string   `json:"playlist,omitempty"`
	Station  string   `json:"station,omitempty"`
	Artist   string   `json:"artist,omitempty"`
	Album    string   `json:"album,omitempty"`
	Song     string   `json:"song,omitempty"`
}

// Validate checks the list-name invariants of an active context.
func (c Context) Validate() error {
	if !c.ListType.Valid() {
		return fmt.Errorf("unknown list type %q", c.ListType)
	}
	if c.Playlist != "" && c.ListType != Playlist {
		return fmt.Errorf("playlist name set on %s context", c.ListType)
	}
	if c.Station != "" && c.ListType != Station {
		return fmt.Errorf("station name set on %s context", c.ListType)
	}
	if c.ListType == Playlist && c.Playlist == "" {
		return errors.New("playlist context without a playlist name")
	}
	if c.ListType == Station && c.Station == "" {
		return errors.New("station context without a station name")
	}
	if c.Song == "" || c.Artist == "" || c.Album == "" {
		return fmt.Errorf("incomplete song in %s context", c.ListType)
	}
	return nil
}

// Event is one listener transition. Values are never mutated after the
// simulator hands them out.
type Event struct {
	Timestamp      int64   `json:"timestamp"`
	ListenerID     int64   `json:"playerId"`
	Tier           Tier    `json:"subscriptionLevel"`
	PartnerService string  `json:"partnerService,omitempty"`
	Kind           Kind    `json:"songEventType"`
	Prior          Context `json:"lastContext"`
	Next           Context `json:"nextContext"`
}

// Time returns the event timestamp as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// RoutingKey is the sink partition key: the decimal listener id.
func (e Event) RoutingKey() string {
	return strconv.FormatInt(e.ListenerID, 10)
}

// Validate checks enum values and context invariants.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if !e.Tier.Valid() {
		return fmt.Errorf("unknown subscription level %q", e.Tier)
	}
	if e.PartnerService != "" && e.Tier != PartnerMember {
		return fmt.Errorf("partner service set for %s listener", e.Tier)
	}
	if err := e.Next.Validate(); err != nil {
		return fmt.Errorf("next context: %w", err)
	}
	return nil
}
