package metrics

// Error kinds passed to RecordError.
const (
	ErrDispatch  = "dispatch"
	ErrAudio     = "audio"
	ErrPersist   = "persist"
	ErrLoad      = "load"
	ErrMalformed = "malformed"
	ErrHistory   = "history"
	ErrWatch     = "watch"
)
