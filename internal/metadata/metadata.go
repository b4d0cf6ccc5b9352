package metadata

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// TrackTags holds tags decoded from an audio payload
type TrackTags struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Genre       string
	Year        string
	CoverArt    []byte
	CoverMIME   string
}

// Extractor decodes tags and cover art from cached audio payloads
type Extractor struct {
	coverMaxPixels int
}

// NewExtractor creates a new extractor. coverMaxPixels bounds the longest
// cover art dimension; zero disables downscaling.
func NewExtractor(coverMaxPixels int) *Extractor {
	return &Extractor{coverMaxPixels: coverMaxPixels}
}

// Extract decodes tags from the payload. The format is chosen by the file
// name's extension; unsupported formats return an error rather than guessing
// from magic bytes.
func (e *Extractor) Extract(payload []byte, fileName string) (*TrackTags, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".mp3":
		return e.extractMP3(payload)
	case ".flac":
		return e.extractFLAC(payload)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// extractMP3 reads ID3v2 tags and the front cover picture frame
func (e *Extractor) extractMP3(payload []byte) (*TrackTags, error) {
	tag, err := id3v2.ParseReader(bytes.NewReader(payload), id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to parse ID3 tags: %w", err)
	}
	defer tag.Close()

	tags := &TrackTags{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
		Genre:  tag.Genre(),
		Year:   tag.Year(),
	}

	if frames := tag.GetFrames(tag.CommonID("Band/Orchestra/Accompaniment")); len(frames) > 0 {
		if tf, ok := frames[0].(id3v2.TextFrame); ok {
			tags.AlbumArtist = tf.Text
		}
	}

	for _, frame := range tag.GetFrames(tag.CommonID("Attached picture")) {
		pic, ok := frame.(id3v2.PictureFrame)
		if !ok {
			continue
		}
		// Prefer the front cover but fall back to the first picture
		if pic.PictureType == id3v2.PTFrontCover || tags.CoverArt == nil {
			tags.CoverArt = pic.Picture
			tags.CoverMIME = pic.MimeType
		}
		if pic.PictureType == id3v2.PTFrontCover {
			break
		}
	}

	if len(tags.CoverArt) > 0 && e.coverMaxPixels > 0 {
		if shrunk, mime, err := downscaleCover(tags.CoverArt, e.coverMaxPixels); err == nil {
			tags.CoverArt = shrunk
			tags.CoverMIME = mime
		}
	}

	return tags, nil
}

// extractFLAC reads Vorbis comments. FLAC picture blocks are left alone; the
// payloads this engine sees carry cover art in ID3 frames only.
func (e *Extractor) extractFLAC(payload []byte) (*TrackTags, error) {
	f, err := flac.ParseBytes(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to parse FLAC stream: %w", err)
	}

	tags := &TrackTags{}

	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}

		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			continue
		}

		tags.Title = firstComment(cmt, "TITLE")
		tags.Artist = firstComment(cmt, "ARTIST")
		tags.Album = firstComment(cmt, "ALBUM")
		tags.AlbumArtist = firstComment(cmt, "ALBUMARTIST")
		tags.Genre = firstComment(cmt, "GENRE")
		tags.Year = firstComment(cmt, "DATE")
		break
	}

	return tags, nil
}

// firstComment returns the first value of a Vorbis comment field
func firstComment(cmt *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	values, err := cmt.Get(field)
	if err != nil || len(values) == 0 {
		return ""
	}
	return values[0]
}
