package api

import "context"

// Track is the server-side shape of a single audio file. The ID is the join
// key across the content store, the download queue and playlist snapshots;
// the server never regenerates it for the same underlying file.
type Track struct {
	ID          string  `json:"id"`
	ChannelID   string  `json:"channel_id,omitempty"`
	ChannelName string  `json:"channel_name,omitempty"`
	FileName    string  `json:"file_name"`
	FileSize    int64   `json:"file_size"`
	Duration    float64 `json:"duration,omitempty"`
	Title       string  `json:"title,omitempty"`
	Artist      string  `json:"artist,omitempty"`
	Album       string  `json:"album,omitempty"`
	SourceURL   string  `json:"source_url,omitempty"`
}

// Playlist is the server-authoritative playlist shape.
type Playlist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	TrackCount  int     `json:"track_count"`
	Tracks      []Track `json:"tracks"`
}

// PlaylistAPI is the remote playlist surface consumed by the reconciler.
// The implementation lives with the HTTP client wrapper, outside this core.
type PlaylistAPI interface {
	GetAll(ctx context.Context) ([]Playlist, error)
	GetByID(ctx context.Context, id string) (*Playlist, error)
	AddTrack(ctx context.Context, playlistID, trackID string) error
	RemoveTrack(ctx context.Context, playlistID, trackID string) error
	ReorderTracks(ctx context.Context, playlistID string, trackIDs []string) error
}

// TrackIDs returns the identifiers of all tracks in the playlist.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		ids = append(ids, t.ID)
	}
	return ids
}
