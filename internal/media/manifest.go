package media

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"subscout/internal/language"
)

// VideoDescriptor is the JSON interchange form produced by the media
// scanning collaborator. Languages are IETF/ISO codes; a ":forced" suffix
// marks forced tracks.
type VideoDescriptor struct {
	ID                int64             `json:"id"`
	Path              string            `json:"path"`
	Title             string            `json:"title"`
	Year              int               `json:"year"`
	Series            string            `json:"series,omitempty"`
	Season            int               `json:"season,omitempty"`
	Episode           int               `json:"episode,omitempty"`
	ImdbID            string            `json:"imdb_id,omitempty"`
	TvdbID            int64             `json:"tvdb_id,omitempty"`
	ReleaseGroup      string            `json:"release_group,omitempty"`
	Resolution        string            `json:"resolution,omitempty"`
	Format            string            `json:"format,omitempty"`
	VideoCodec        string            `json:"video_codec,omitempty"`
	AudioCodec        string            `json:"audio_codec,omitempty"`
	FPS               float64           `json:"fps,omitempty"`
	Duration          float64           `json:"duration,omitempty"`
	Hashes            map[string]string `json:"hashes,omitempty"`
	AudioLanguages    []string          `json:"audio_languages,omitempty"`
	SubtitleLanguages []string          `json:"subtitle_languages,omitempty"`
	MetadataLanguages []string          `json:"metadata_languages,omitempty"`
	Scores            map[string]int    `json:"scores,omitempty"`
}

// Video converts the descriptor into the resolver's Video type.
func (d VideoDescriptor) Video() (*Video, error) {
	if d.ID <= 0 {
		return nil, fmt.Errorf("media: descriptor %q has no id", d.Title)
	}
	if strings.TrimSpace(d.Title) == "" && strings.TrimSpace(d.Series) == "" {
		return nil, fmt.Errorf("media: descriptor %d has neither title nor series", d.ID)
	}
	audio, err := language.ParseList(d.AudioLanguages)
	if err != nil {
		return nil, fmt.Errorf("media: descriptor %d audio languages: %w", d.ID, err)
	}
	subs, err := language.ParseList(d.SubtitleLanguages)
	if err != nil {
		return nil, fmt.Errorf("media: descriptor %d subtitle languages: %w", d.ID, err)
	}
	meta, err := language.ParseList(d.MetadataLanguages)
	if err != nil {
		return nil, fmt.Errorf("media: descriptor %d metadata languages: %w", d.ID, err)
	}
	video := &Video{
		ID:                d.ID,
		Path:              d.Path,
		Title:             strings.TrimSpace(d.Title),
		Year:              d.Year,
		Series:            strings.TrimSpace(d.Series),
		Season:            d.Season,
		Episode:           d.Episode,
		ImdbID:            strings.TrimSpace(d.ImdbID),
		TvdbID:            d.TvdbID,
		ReleaseGroup:      d.ReleaseGroup,
		Resolution:        d.Resolution,
		Format:            d.Format,
		VideoCodec:        d.VideoCodec,
		AudioCodec:        d.AudioCodec,
		FPS:               d.FPS,
		Duration:          d.Duration,
		Hashes:            d.Hashes,
		AudioLanguages:    audio,
		SubtitleLanguages: subs,
		MetadataLanguages: meta,
		Scores:            ScoreTable(d.Scores),
	}
	return video, nil
}

// LoadManifest reads a JSON array of video descriptors from path.
func LoadManifest(path string) ([]*Video, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("media: read manifest: %w", err)
	}
	var descriptors []VideoDescriptor
	if err := json.Unmarshal(raw, &descriptors); err != nil {
		return nil, fmt.Errorf("media: decode manifest: %w", err)
	}
	videos := make([]*Video, 0, len(descriptors))
	for _, d := range descriptors {
		video, err := d.Video()
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, nil
}
