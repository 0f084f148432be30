// Package auditor consumes the login event stream and emits audit log
// entries. It runs as its own process and isolates failures per message:
// one undecodable event never stops the loop.
package auditor

import "time"

// Entry is one audit record, derived 1:1 from a consumed login event plus
// transport metadata. Entries are emitted as structured log lines; the log
// stream is the append-only sink.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
	Key       string    `json:"key"`    // partition key: the stringified user ID
	Offset    uint64    `json:"offset"` // stream sequence of the consumed message
	UserID    int       `json:"userId"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	IPAddress string    `json:"ipAddress"`
}
