package types

// Stats are the user-visible counters printed on shutdown.
type Stats struct {
	FilesMoved      int64
	FilesDeleted    int64
	FilesCreated    int64
	LinksUpdated    int64
	Errors          int64
	FilesScanned    int64
	ReferencesFound int64
	WatchEvents     int64 // raw events delivered by the watcher
	WatchErrors     int64
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		FilesMoved:      s.FilesMoved + o.FilesMoved,
		FilesDeleted:    s.FilesDeleted + o.FilesDeleted,
		FilesCreated:    s.FilesCreated + o.FilesCreated,
		LinksUpdated:    s.LinksUpdated + o.LinksUpdated,
		Errors:          s.Errors + o.Errors,
		FilesScanned:    s.FilesScanned + o.FilesScanned,
		ReferencesFound: s.ReferencesFound + o.ReferencesFound,
		WatchEvents:     s.WatchEvents + o.WatchEvents,
		WatchErrors:     s.WatchErrors + o.WatchErrors,
	}
}
