package util

import "time"

// jst is the fixed zone used for song/chart row timestamps; the artifact
// has always recorded those in Japan time.
var jst = time.FixedZone("JST", 9*60*60)

// JSTTimestamp returns the current JST time in ISO 8601
func JSTTimestamp() string {
	return time.Now().In(jst).Format(time.RFC3339)
}

// UTCTimestamp returns the current UTC time in ISO 8601 with Z suffix
func UTCTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
