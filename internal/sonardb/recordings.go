package sonardb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/fanbeam/internal/sonar/recorder"
)

// ErrNotFound is returned when a catalog lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Recording is one catalogued recording directory.
type Recording struct {
	SessionID   string    `json:"session_id"`
	Path        string    `json:"path"`
	Source      string    `json:"source"`
	Beams       int       `json:"beams"`
	RangeBins   int       `json:"range_bins"`
	Depth       string    `json:"depth"`
	SwathDeg    float64   `json:"swath_deg"`
	MaxRange    float64   `json:"max_range"`
	FPS         float64   `json:"fps"`
	TotalFrames uint64    `json:"total_frames"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Created     time.Time `json:"created"`
}

// Duration is the wall-clock span of the recording.
func (r Recording) Duration() time.Duration { return r.End.Sub(r.Start) }

// RecordingFromHeader catalogues a recording at path.
func RecordingFromHeader(path string, h recorder.Header) Recording {
	return Recording{
		SessionID:   h.SessionID,
		Path:        path,
		Source:      h.Source,
		Beams:       h.Beams,
		RangeBins:   h.RangeBins,
		Depth:       h.Depth,
		SwathDeg:    h.SwathDeg,
		MaxRange:    h.MaxRange,
		FPS:         h.FPS,
		TotalFrames: h.TotalFrames,
		Start:       time.Unix(0, h.StartNs),
		End:         time.Unix(0, h.EndNs),
		Created:     time.Unix(0, h.CreatedNs),
	}
}

// UpsertRecording inserts r, replacing any row with the same session id.
func (db *DB) UpsertRecording(r Recording) error {
	_, err := db.Exec(`
		INSERT INTO recordings (
			session_id, path, source, beams, range_bins, depth, swath_deg,
			max_range, fps, total_frames, start_ns, end_ns, created_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			path = excluded.path,
			source = excluded.source,
			total_frames = excluded.total_frames,
			end_ns = excluded.end_ns`,
		r.SessionID, r.Path, r.Source, r.Beams, r.RangeBins, r.Depth, r.SwathDeg,
		r.MaxRange, r.FPS, int64(r.TotalFrames), r.Start.UnixNano(), r.End.UnixNano(), r.Created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert recording %s: %w", r.SessionID, err)
	}
	return nil
}

// CatalogRecording opens the recording at path and upserts its header.
func (db *DB) CatalogRecording(path string) (Recording, error) {
	rp, err := recorder.NewReplayer(path)
	if err != nil {
		return Recording{}, err
	}
	defer rp.Close()
	r := RecordingFromHeader(path, rp.Header())
	return r, db.UpsertRecording(r)
}

const recordingColumns = `session_id, path, source, beams, range_bins, depth, swath_deg,
	max_range, fps, total_frames, start_ns, end_ns, created_ns`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (Recording, error) {
	var r Recording
	var frames, start, end, created int64
	err := s.Scan(&r.SessionID, &r.Path, &r.Source, &r.Beams, &r.RangeBins, &r.Depth, &r.SwathDeg,
		&r.MaxRange, &r.FPS, &frames, &start, &end, &created)
	if err != nil {
		return r, err
	}
	r.TotalFrames = uint64(frames)
	r.Start, r.End, r.Created = time.Unix(0, start), time.Unix(0, end), time.Unix(0, created)
	return r, nil
}

// Recording looks up one recording by session id.
func (db *DB) Recording(sessionID string) (Recording, error) {
	row := db.QueryRow(`SELECT `+recordingColumns+` FROM recordings WHERE session_id = ?`, sessionID)
	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("recording %s: %w", sessionID, ErrNotFound)
	}
	return r, err
}

// Recordings lists the catalog, newest first. limit <= 0 lists everything.
func (db *DB) Recordings(limit int) ([]Recording, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT `+recordingColumns+` FROM recordings ORDER BY start_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRecording removes a catalog row; the directory is left alone.
func (db *DB) DeleteRecording(sessionID string) error {
	res, err := db.Exec(`DELETE FROM recordings WHERE session_id = ?`, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %s: %w", sessionID, ErrNotFound)
	}
	return nil
}
