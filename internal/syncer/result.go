package syncer

import "time"

// Result is what a cycle always returns: counts of completed work plus the
// per-item errors that did not abort the cycle. A fatal condition sets Err
// and Success=false; completed work before the fatal point is still counted.
type Result struct {
	Success       bool
	Uploaded      int
	Downloaded    int
	DeletedRemote int
	DeletedLocal  int
	Renamed       int
	Conflicts     int
	Unchanged     int
	BytesUp       int64
	BytesDown     int64
	Errors        []error
	Err           error
	Took          time.Duration
}

func (r *Result) addError(err error) {
	r.Errors = append(r.Errors, err)
}

// Changed reports whether the cycle performed any transfer or deletion.
func (r *Result) Changed() bool {
	return r.Uploaded > 0 || r.Downloaded > 0 || r.DeletedRemote > 0 ||
		r.DeletedLocal > 0 || r.Renamed > 0 || r.Conflicts > 0
}
