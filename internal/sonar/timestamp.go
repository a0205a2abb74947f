package sonar

import (
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Recording names carry their start time in one of two layouts, with
// optional milliseconds:
//
//	sonar_2025-05-03_14-02-11.250.sonlog
//	2025_05_03-14_02_11.mkv
var baseTimestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})_(\d{2})-(\d{2})-(\d{2})(?:\.(\d{3}))?\.[A-Za-z0-9]+$`),
	regexp.MustCompile(`(\d{4})_(\d{2})_(\d{2})-(\d{2})_(\d{2})_(\d{2})(?:\.(\d{3}))?\.[A-Za-z0-9]+$`),
}

// BaseTimestamp extracts the wall-clock start time encoded in a recording
// file name. The time is interpreted in loc (time.Local when nil).
func BaseTimestamp(path string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	name := filepath.Base(filepath.Clean(path))
	for _, re := range baseTimestampPatterns {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		var f [7]int
		for i := 0; i < 6; i++ {
			f[i], _ = strconv.Atoi(m[i+1])
		}
		if m[7] != "" {
			f[6], _ = strconv.Atoi(m[7])
		}
		t := time.Date(f[0], time.Month(f[1]), f[2], f[3], f[4], f[5], f[6]*int(time.Millisecond), loc)
		// time.Date normalises out-of-range fields; reject those names.
		if t.Month() != time.Month(f[1]) || t.Day() != f[2] || t.Hour() != f[3] {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// RecordingName formats t in the first layout accepted by BaseTimestamp.
func RecordingName(prefix string, t time.Time, ext string) string {
	return prefix + t.Format("2006-01-02_15-04-05.000") + ext
}
