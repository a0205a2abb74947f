package sonardb

import (
	"fmt"
	"time"

	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
	"github.com/banshee-data/fanbeam/internal/sonar/network"
)

// Transport roles.
const (
	RoleSend = "send"
	RoleRecv = "recv"
)

// TransportSample is one stats row. Counters are cumulative for the
// session, as reported by the sender or reassembler.
type TransportSample struct {
	SessionID        string    `json:"session_id"`
	Role             string    `json:"role"`
	Time             time.Time `json:"time"`
	Datagrams        uint64    `json:"datagrams"`
	Bytes            uint64    `json:"bytes"`
	Frames           uint64    `json:"frames"`
	FramesIncomplete uint64    `json:"frames_incomplete"`
	Duplicates       uint64    `json:"duplicates"`
	Orphans          uint64    `json:"orphans"`
	Malformed        uint64    `json:"malformed"`
	SkippedFrameIDs  uint64    `json:"skipped_frame_ids"`
	StaleFrames      uint64    `json:"stale_frames"`
	WriteErrors      uint64    `json:"write_errors"`
}

// ReceiverSample converts reassembler counters.
func ReceiverSample(sessionID string, t time.Time, s l1datagrams.ReassemblerStats) TransportSample {
	return TransportSample{
		SessionID:        sessionID,
		Role:             RoleRecv,
		Time:             t,
		Datagrams:        s.Datagrams,
		Bytes:            s.Bytes,
		Frames:           s.FramesDelivered,
		FramesIncomplete: s.FramesIncomplete,
		Duplicates:       s.Duplicates,
		Orphans:          s.Orphans,
		Malformed:        s.Malformed,
		SkippedFrameIDs:  s.SkippedFrameIDs,
		StaleFrames:      s.StaleFrames,
	}
}

// SenderSample converts sender counters.
func SenderSample(sessionID string, t time.Time, s network.SenderStats) TransportSample {
	return TransportSample{
		SessionID:   sessionID,
		Role:        RoleSend,
		Time:        t,
		Datagrams:   s.Datagrams,
		Bytes:       s.Bytes,
		Frames:      s.FramesSent,
		WriteErrors: s.WriteErrors,
	}
}

func (db *DB) RecordTransportSample(s TransportSample) error {
	_, err := db.Exec(`
		INSERT INTO transport_stats (
			session_id, role, ts_ns, datagrams, bytes, frames, frames_incomplete,
			duplicates, orphans, malformed, skipped_frame_ids, stale_frames, write_errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.Role, s.Time.UnixNano(), int64(s.Datagrams), int64(s.Bytes), int64(s.Frames),
		int64(s.FramesIncomplete), int64(s.Duplicates), int64(s.Orphans), int64(s.Malformed),
		int64(s.SkippedFrameIDs), int64(s.StaleFrames), int64(s.WriteErrors),
	)
	if err != nil {
		return fmt.Errorf("failed to record transport stats: %w", err)
	}
	return nil
}

// TransportSamples returns the most recent samples of a session in time
// order. An empty sessionID matches every session.
func (db *DB) TransportSamples(sessionID string, limit int) ([]TransportSample, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Query(`
		SELECT session_id, role, ts_ns, datagrams, bytes, frames, frames_incomplete,
			duplicates, orphans, malformed, skipped_frame_ids, stale_frames, write_errors
		FROM (
			SELECT * FROM transport_stats
			WHERE ? = '' OR session_id = ?
			ORDER BY ts_ns DESC, stat_id DESC
			LIMIT ?
		)
		ORDER BY ts_ns ASC, stat_id ASC`, sessionID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransportSample
	for rows.Next() {
		var s TransportSample
		var ts int64
		var c [10]int64
		if err := rows.Scan(&s.SessionID, &s.Role, &ts, &c[0], &c[1], &c[2], &c[3], &c[4], &c[5], &c[6], &c[7], &c[8], &c[9]); err != nil {
			return nil, err
		}
		s.Time = time.Unix(0, ts)
		s.Datagrams, s.Bytes, s.Frames = uint64(c[0]), uint64(c[1]), uint64(c[2])
		s.FramesIncomplete, s.Duplicates, s.Orphans = uint64(c[3]), uint64(c[4]), uint64(c[5])
		s.Malformed, s.SkippedFrameIDs, s.StaleFrames = uint64(c[6]), uint64(c[7]), uint64(c[8])
		s.WriteErrors = uint64(c[9])
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneTransportStats deletes samples older than before and returns how
// many were removed.
func (db *DB) PruneTransportStats(before time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM transport_stats WHERE ts_ns < ?`, before.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
