package replay

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const archiveVersion = 1

// Archive is the exported history of a finished match.
type Archive struct {
	Version    int       `json:"version"`
	MatchID    string    `json:"matchId"`
	Player1ID  string    `json:"player1Id"`
	Player2ID  string    `json:"player2Id"`
	WinnerID   string    `json:"winnerId,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
	Steps      []Step    `json:"steps"`
}

// Key is the object name the archive is stored under.
func (a Archive) Key() string {
	return fmt.Sprintf("replays/%s.json.gz", a.MatchID)
}

// Encode writes the archive as gzip-compressed JSON.
func Encode(w io.Writer, a Archive) error {
	a.Version = archiveVersion
	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(&a); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush archive: %w", err)
	}
	return nil
}

// Decode reads an archive written by Encode.
func Decode(r io.Reader) (Archive, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return Archive{}, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var a Archive
	if err := json.NewDecoder(gz).Decode(&a); err != nil {
		return Archive{}, fmt.Errorf("failed to decode archive: %w", err)
	}
	if a.Version != archiveVersion {
		return Archive{}, fmt.Errorf("unsupported archive version: %d", a.Version)
	}
	return a, nil
}
