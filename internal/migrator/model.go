package migrator

import "time"

// Row is one entry of the migration history table.
type Row struct {
	Version        string
	Name           string
	Checksum       string
	AppliedAt      time.Time
	AppliedBy      string
	DurationMS     int64
	Status         string // success | failed
	ExecutionOrder int64
	RunID          string
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

func Key(version, name string) string { return version + ":" + name }

func (r Row) Key() string { return Key(r.Version, r.Name) }
