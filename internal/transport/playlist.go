package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/playvault/playvault-go/internal/api"
	apperrors "github.com/playvault/playvault-go/internal/errors"
)

// PlaylistClient is the HTTP implementation of api.PlaylistAPI
type PlaylistClient struct {
	client *Client
}

// NewPlaylistClient creates a playlist client sharing the transport's pooled
// connections and API key.
func NewPlaylistClient(client *Client) *PlaylistClient {
	return &PlaylistClient{client: client}
}

// playlistsEnvelope is the server's list response shape
type playlistsEnvelope struct {
	Playlists []api.Playlist `json:"playlists"`
}

// GetAll fetches every playlist with its full track list
func (pc *PlaylistClient) GetAll(ctx context.Context) ([]api.Playlist, error) {
	var envelope playlistsEnvelope
	if err := pc.doJSON(ctx, http.MethodGet, "/api/playlists", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Playlists, nil
}

// GetByID fetches one playlist with its full track list
func (pc *PlaylistClient) GetByID(ctx context.Context, id string) (*api.Playlist, error) {
	playlist := &api.Playlist{}
	if err := pc.doJSON(ctx, http.MethodGet, "/api/playlists/"+id, nil, playlist); err != nil {
		return nil, err
	}
	return playlist, nil
}

// AddTrack appends a track to a playlist on the server
func (pc *PlaylistClient) AddTrack(ctx context.Context, playlistID, trackID string) error {
	body := map[string]string{"track_id": trackID}
	return pc.doJSON(ctx, http.MethodPost, "/api/playlists/"+playlistID+"/tracks", body, nil)
}

// RemoveTrack removes a track from a playlist on the server
func (pc *PlaylistClient) RemoveTrack(ctx context.Context, playlistID, trackID string) error {
	return pc.doJSON(ctx, http.MethodDelete, "/api/playlists/"+playlistID+"/tracks/"+trackID, nil, nil)
}

// ReorderTracks replaces a playlist's track order on the server
func (pc *PlaylistClient) ReorderTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	body := map[string][]string{"track_ids": trackIDs}
	return pc.doJSON(ctx, http.MethodPut, "/api/playlists/"+playlistID+"/order", body, nil)
}

// doJSON performs a JSON request against the playlist API and decodes the
// response into out when non-nil.
func (pc *PlaylistClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewValidationError("failed to marshal request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, pc.client.baseURL+path, reader)
	if err != nil {
		return apperrors.NewNetworkError("failed to build request", err)
	}
	if pc.client.apiKey != "" {
		req.Header.Set("X-API-Key", pc.client.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := pc.client.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.NewCancelledError("request cancelled")
		}
		return apperrors.NewNetworkError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewNetworkError(
			fmt.Sprintf("playlist API returned status %d for %s %s", resp.StatusCode, method, path), nil)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewNetworkError("failed to decode response", err)
	}

	return nil
}
