package metadata

import (
	"bytes"
	"testing"

	"github.com/bogem/id3v2/v2"
)

// buildMP3 produces a minimal payload: an ID3v2 tag followed by fake audio
func buildMP3(t *testing.T, title, artist, album string) []byte {
	t.Helper()

	tag := id3v2.NewEmptyTag()
	tag.SetTitle(title)
	tag.SetArtist(artist)
	tag.SetAlbum(album)
	tag.SetGenre("Electronic")
	tag.SetYear("2024")

	var buf bytes.Buffer
	if _, err := tag.WriteTo(&buf); err != nil {
		t.Fatalf("Failed to build tag: %v", err)
	}
	buf.Write([]byte{0xFF, 0xFB, 0x90, 0x00})
	return buf.Bytes()
}

func TestExtract_MP3Tags(t *testing.T) {
	payload := buildMP3(t, "Night Drive", "Some Artist", "Some Album")

	tags, err := NewExtractor(0).Extract(payload, "track.mp3")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if tags.Title != "Night Drive" {
		t.Errorf("Expected title, got %q", tags.Title)
	}
	if tags.Artist != "Some Artist" {
		t.Errorf("Expected artist, got %q", tags.Artist)
	}
	if tags.Album != "Some Album" {
		t.Errorf("Expected album, got %q", tags.Album)
	}
	if tags.Genre != "Electronic" {
		t.Errorf("Expected genre, got %q", tags.Genre)
	}
	if tags.Year != "2024" {
		t.Errorf("Expected year, got %q", tags.Year)
	}
}

func TestExtract_MP3UppercaseExtension(t *testing.T) {
	payload := buildMP3(t, "Title", "Artist", "Album")

	tags, err := NewExtractor(0).Extract(payload, "TRACK.MP3")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if tags.Title != "Title" {
		t.Errorf("Expected title, got %q", tags.Title)
	}
}

func TestExtract_EmptyPayload(t *testing.T) {
	if _, err := NewExtractor(0).Extract(nil, "track.mp3"); err == nil {
		t.Error("Expected error for empty payload")
	}
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	if _, err := NewExtractor(0).Extract([]byte("data"), "track.ogg"); err == nil {
		t.Error("Expected error for unsupported extension")
	}
	if _, err := NewExtractor(0).Extract([]byte("data"), "noextension"); err == nil {
		t.Error("Expected error for missing extension")
	}
}

func TestExtract_MalformedFLAC(t *testing.T) {
	if _, err := NewExtractor(0).Extract([]byte("definitely not flac"), "track.flac"); err == nil {
		t.Error("Expected error for malformed FLAC payload")
	}
}
