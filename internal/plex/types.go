// ABOUTME: Wire types for Plex JSON replies (MediaContainer and its children).
// ABOUTME: FlexInt and FlexBool absorb the server's mix of quoted and bare scalars.

package plex

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt decodes integers the server sends either as numbers or as strings,
// such as ratingKey and librarySectionID.
type FlexInt int64

// UnmarshalJSON accepts 12, "12", 12.0, "" and null.
func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("plex: cannot decode %q as integer", s)
		}
		n = int64(fl)
	}
	*f = FlexInt(n)
	return nil
}

// UnmarshalText supports XML attributes.
func (f *FlexInt) UnmarshalText(b []byte) error {
	return f.UnmarshalJSON(b)
}

// String returns the decimal form used in request paths.
func (f FlexInt) String() string {
	return strconv.FormatInt(int64(f), 10)
}

// FlexBool decodes booleans sent as true/false, 0/1 or "0"/"1".
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexBool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`)) {
	case "1", "true":
		*f = true
	default:
		*f = false
	}
	return nil
}

// UnmarshalText supports XML attributes.
func (f *FlexBool) UnmarshalText(b []byte) error {
	return f.UnmarshalJSON(b)
}

type containerEnvelope struct {
	MediaContainer MediaContainer `json:"MediaContainer"`
}

// MediaContainer is the top-level object of almost every Plex reply. Only the
// fields this server reads are declared.
type MediaContainer struct {
	Size      int     `json:"size"`
	TotalSize int     `json:"totalSize"`
	Offset    int     `json:"offset"`
	Title1    string  `json:"title1"`
	SectionID FlexInt `json:"librarySectionID"`

	// Server identity, present on GET /.
	FriendlyName                  string   `json:"friendlyName"`
	MachineIdentifier             string   `json:"machineIdentifier"`
	Version                       string   `json:"version"`
	Platform                      string   `json:"platform"`
	PlatformVersion               string   `json:"platformVersion"`
	MyPlex                        FlexBool `json:"myPlex"`
	MyPlexUsername                string   `json:"myPlexUsername"`
	MyPlexSubscription            FlexBool `json:"myPlexSubscription"`
	TranscoderActiveVideoSessions int      `json:"transcoderActiveVideoSessions"`
	UpdatedAt                     int64    `json:"updatedAt"`

	// Play queue creation.
	PlayQueueID             FlexInt `json:"playQueueID"`
	PlayQueueSelectedItemID FlexInt `json:"playQueueSelectedItemID"`

	Metadata            []Metadata      `json:"Metadata"`
	Directory           []Directory     `json:"Directory"`
	SearchResult        []SearchResult  `json:"SearchResult"`
	Hub                 []Hub           `json:"Hub"`
	Server              []Device        `json:"Server"`
	Account             []Account       `json:"Account"`
	Device              []Device        `json:"Device"`
	Activity            []Activity      `json:"Activity"`
	Timeline            []Timeline      `json:"Timeline"`
	StatisticsBandwidth []BandwidthStat `json:"StatisticsBandwidth"`
	StatisticsResources []ResourceStat  `json:"StatisticsResources"`
}

// Identity is what the probe learns about the server.
type Identity struct {
	FriendlyName                  string
	MachineIdentifier             string
	Version                       string
	Platform                      string
	PlatformVersion               string
	MyPlex                        bool
	MyPlexUsername                string
	MyPlexSubscription            bool
	TranscoderActiveVideoSessions int
	UpdatedAt                     int64
}

// Metadata is one library item: movie, show, season, episode, artist, album,
// track, photo, playlist or collection. Session and history replies reuse it.
type Metadata struct {
	RatingKey            FlexInt `json:"ratingKey"`
	Key                  string  `json:"key"`
	GUID                 string  `json:"guid"`
	Type                 string  `json:"type"`
	Subtype              string  `json:"subtype"`
	Title                string  `json:"title"`
	TitleSort            string  `json:"titleSort"`
	OriginalTitle        string  `json:"originalTitle"`
	Summary              string  `json:"summary"`
	Tagline              string  `json:"tagline"`
	Studio               string  `json:"studio"`
	ContentRating        string  `json:"contentRating"`
	Year                 int     `json:"year"`
	ParentYear           int     `json:"parentYear"`
	Rating               float64 `json:"rating"`
	AudienceRating       float64 `json:"audienceRating"`
	UserRating           float64 `json:"userRating"`
	Index                int     `json:"index"`
	ParentIndex          int     `json:"parentIndex"`
	ParentTitle          string  `json:"parentTitle"`
	GrandparentTitle     string  `json:"grandparentTitle"`
	ParentRatingKey      FlexInt `json:"parentRatingKey"`
	GrandparentRatingKey FlexInt `json:"grandparentRatingKey"`
	SectionID            FlexInt `json:"librarySectionID"`
	SectionTitle         string  `json:"librarySectionTitle"`

	Duration              int64  `json:"duration"`
	ViewCount             int    `json:"viewCount"`
	SkipCount             int    `json:"skipCount"`
	ViewOffset            int64  `json:"viewOffset"`
	LastViewedAt          int64  `json:"lastViewedAt"`
	AddedAt               int64  `json:"addedAt"`
	UpdatedAt             int64  `json:"updatedAt"`
	OriginallyAvailableAt string `json:"originallyAvailableAt"`
	LeafCount             int    `json:"leafCount"`
	ViewedLeafCount       int    `json:"viewedLeafCount"`
	ChildCount            int    `json:"childCount"`

	Thumb            string `json:"thumb"`
	Art              string `json:"art"`
	ParentThumb      string `json:"parentThumb"`
	GrandparentThumb string `json:"grandparentThumb"`
	GrandparentArt   string `json:"grandparentArt"`

	// Playlists and collections.
	Smart          FlexBool `json:"smart"`
	PlaylistType   string   `json:"playlistType"`
	PlaylistItemID FlexInt  `json:"playlistItemID"`

	// Sessions and history.
	SessionKey       string            `json:"sessionKey"`
	User             *SessionUser      `json:"User"`
	Player           *Player           `json:"Player"`
	Session          *Session          `json:"Session"`
	TranscodeSession *TranscodeSession `json:"TranscodeSession"`
	HistoryKey       string            `json:"historyKey"`
	ViewedAt         int64             `json:"viewedAt"`
	AccountID        FlexInt           `json:"accountID"`
	DeviceID         FlexInt           `json:"deviceID"`

	Media      []Media `json:"Media"`
	Similar    []Tag   `json:"Similar"`
	Genre      []Tag   `json:"Genre"`
	Director   []Tag   `json:"Director"`
	Writer     []Tag   `json:"Writer"`
	Role       []Tag   `json:"Role"`
	Country    []Tag   `json:"Country"`
	Label      []Tag   `json:"Label"`
	Collection []Tag   `json:"Collection"`
	Mood       []Tag   `json:"Mood"`
	Style      []Tag   `json:"Style"`
}

// Media is one encoding of an item.
type Media struct {
	ID              FlexInt `json:"id"`
	Duration        int64   `json:"duration"`
	Bitrate         int     `json:"bitrate"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	AspectRatio     float64 `json:"aspectRatio"`
	AudioChannels   int     `json:"audioChannels"`
	AudioCodec      string  `json:"audioCodec"`
	VideoCodec      string  `json:"videoCodec"`
	VideoResolution string  `json:"videoResolution"`
	VideoFrameRate  string  `json:"videoFrameRate"`
	Container       string  `json:"container"`
	Part            []Part  `json:"Part"`
}

// Part is one file of a Media.
type Part struct {
	ID        FlexInt  `json:"id"`
	Key       string   `json:"key"`
	Duration  int64    `json:"duration"`
	File      string   `json:"file"`
	Size      int64    `json:"size"`
	Container string   `json:"container"`
	Stream    []Stream `json:"Stream"`
}

// Stream is an audio, video or subtitle track inside a Part.
type Stream struct {
	ID           FlexInt  `json:"id"`
	StreamType   int      `json:"streamType"`
	Codec        string   `json:"codec"`
	Language     string   `json:"language"`
	DisplayTitle string   `json:"displayTitle"`
	Selected     FlexBool `json:"selected"`
}

// Tag is a genre, label, director, role and so on.
type Tag struct {
	ID   FlexInt `json:"id"`
	Tag  string  `json:"tag"`
	Role string  `json:"role"`
}

// Directory is a library section (and other directory-style entries).
type Directory struct {
	Key        string     `json:"key"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Agent      string     `json:"agent"`
	Scanner    string     `json:"scanner"`
	Language   string     `json:"language"`
	UUID       string     `json:"uuid"`
	CreatedAt  int64      `json:"createdAt"`
	UpdatedAt  int64      `json:"updatedAt"`
	ScannedAt  int64      `json:"scannedAt"`
	Refreshing FlexBool   `json:"refreshing"`
	Location   []Location `json:"Location"`
}

// Location is a folder backing a library section.
type Location struct {
	ID   FlexInt `json:"id"`
	Path string  `json:"path"`
}

// SearchResult wraps one hit of /library/search.
type SearchResult struct {
	Score    float64   `json:"score"`
	Metadata *Metadata `json:"Metadata"`
}

// Hub groups /hubs/search hits by kind.
type Hub struct {
	HubIdentifier string     `json:"hubIdentifier"`
	Title         string     `json:"title"`
	Type          string     `json:"type"`
	Size          int        `json:"size"`
	Metadata      []Metadata `json:"Metadata"`
}

// Device is a player known to the server (/clients) or a device in the
// bandwidth statistics.
type Device struct {
	ID                   FlexInt `json:"id"`
	Name                 string  `json:"name"`
	Host                 string  `json:"host"`
	Address              string  `json:"address"`
	Port                 int     `json:"port"`
	MachineIdentifier    string  `json:"machineIdentifier"`
	ClientIdentifier     string  `json:"clientIdentifier"`
	Version              string  `json:"version"`
	Protocol             string  `json:"protocol"`
	Product              string  `json:"product"`
	Platform             string  `json:"platform"`
	DeviceClass          string  `json:"deviceClass"`
	ProtocolVersion      string  `json:"protocolVersion"`
	ProtocolCapabilities string  `json:"protocolCapabilities"`
}

// Account is a server-local account (/accounts).
type Account struct {
	ID    FlexInt `json:"id"`
	Key   string  `json:"key"`
	Name  string  `json:"name"`
	Thumb string  `json:"thumb"`
}

// SessionUser is the user attached to an active session.
type SessionUser struct {
	ID    FlexInt `json:"id"`
	Title string  `json:"title"`
	Thumb string  `json:"thumb"`
}

// Player is the device attached to an active session.
type Player struct {
	Address           string   `json:"address"`
	Device            string   `json:"device"`
	MachineIdentifier string   `json:"machineIdentifier"`
	Model             string   `json:"model"`
	Platform          string   `json:"platform"`
	PlatformVersion   string   `json:"platformVersion"`
	Product           string   `json:"product"`
	State             string   `json:"state"`
	Title             string   `json:"title"`
	Version           string   `json:"version"`
	Local             FlexBool `json:"local"`
	Relayed           FlexBool `json:"relayed"`
	Secure            FlexBool `json:"secure"`
}

// Session carries bandwidth details for an active session.
type Session struct {
	ID        string `json:"id"`
	Bandwidth int    `json:"bandwidth"`
	Location  string `json:"location"`
}

// TranscodeSession is present when a session is being transcoded.
type TranscodeSession struct {
	Key              string   `json:"key"`
	Throttled        FlexBool `json:"throttled"`
	Progress         float64  `json:"progress"`
	Speed            float64  `json:"speed"`
	VideoDecision    string   `json:"videoDecision"`
	AudioDecision    string   `json:"audioDecision"`
	Container        string   `json:"container"`
	VideoCodec       string   `json:"videoCodec"`
	AudioCodec       string   `json:"audioCodec"`
	SourceVideoCodec string   `json:"sourceVideoCodec"`
	SourceAudioCodec string   `json:"sourceAudioCodec"`
}

// Activity is a background job reported by /activities.
type Activity struct {
	UUID        string   `json:"uuid"`
	Type        string   `json:"type"`
	Cancellable FlexBool `json:"cancellable"`
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Progress    int      `json:"progress"`
}

// ButlerTask is a scheduled maintenance task.
type ButlerTask struct {
	Name               string   `json:"name"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Enabled            FlexBool `json:"enabled"`
	Interval           int      `json:"interval"`
	ScheduleRandomized FlexBool `json:"scheduleRandomized"`
}

// BandwidthStat is one bucket of /statistics/bandwidth.
type BandwidthStat struct {
	AccountID FlexInt  `json:"accountID"`
	DeviceID  FlexInt  `json:"deviceID"`
	Timespan  int      `json:"timespan"`
	At        int64    `json:"at"`
	LAN       FlexBool `json:"lan"`
	Bytes     int64    `json:"bytes"`
}

// ResourceStat is one sample of /statistics/resources.
type ResourceStat struct {
	Timespan                 int     `json:"timespan"`
	At                       int64   `json:"at"`
	HostCPUUtilization       float64 `json:"hostCpuUtilization"`
	ProcessCPUUtilization    float64 `json:"processCpuUtilization"`
	HostMemoryUtilization    float64 `json:"hostMemoryUtilization"`
	ProcessMemoryUtilization float64 `json:"processMemoryUtilization"`
}

// Timeline is a player's playback state for one media type.
type Timeline struct {
	Type              string  `json:"type" xml:"type,attr"`
	State             string  `json:"state" xml:"state,attr"`
	Time              int64   `json:"time" xml:"time,attr"`
	Duration          int64   `json:"duration" xml:"duration,attr"`
	RatingKey         FlexInt `json:"ratingKey" xml:"ratingKey,attr"`
	Key               string  `json:"key" xml:"key,attr"`
	MachineIdentifier string  `json:"machineIdentifier" xml:"machineIdentifier,attr"`
	Volume            int     `json:"volume" xml:"volume,attr"`
	Shuffle           string  `json:"shuffle" xml:"shuffle,attr"`
	Repeat            string  `json:"repeat" xml:"repeat,attr"`
	Controllable      string  `json:"controllable" xml:"controllable,attr"`
}

// typeNumbers maps item type names to the numeric codes the library
// endpoints take in their type parameter.
var typeNumbers = map[string]int{
	"movie":      1,
	"show":       2,
	"season":     3,
	"episode":    4,
	"artist":     8,
	"album":      9,
	"track":      10,
	"photoalbum": 14,
	"photo":      13,
	"clip":       12,
	"playlist":   15,
	"collection": 18,
}

// TypeNumber returns the numeric library type code for an item type name.
func TypeNumber(itemType string) (int, bool) {
	n, ok := typeNumbers[itemType]
	return n, ok
}

// PlaylistTypeFor returns the playlist type (audio, video or photo) that can
// hold items of the given type.
func PlaylistTypeFor(itemType string) string {
	switch itemType {
	case "track", "album", "artist":
		return "audio"
	case "photo", "photoalbum":
		return "photo"
	default:
		return "video"
	}
}

// Artwork is one poster or background choice offered for an item. Its
// rating key is an opaque string such as an upload:// or agent URI.
type Artwork struct {
	Key       string   `json:"key"`
	RatingKey string   `json:"ratingKey"`
	Thumb     string   `json:"thumb"`
	Selected  FlexBool `json:"selected"`
	Provider  string   `json:"provider"`
}
