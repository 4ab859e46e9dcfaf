package models

// Requests for the monitor HTTP endpoints. Defined in domain for consistency and reuse.

type SignalRequest struct {
	Timeframe string `json:"timeframe" default:"1m" validate:"max=16"`
	Asset     string `json:"asset" validate:"required,max=64"`
	Timestamp string `json:"timestamp" validate:"required,clock"`
	Direction string `json:"direction" validate:"required,max=16"`
}

// Signal converts the request into an untriggered Signal.
func (r SignalRequest) Signal() Signal {
	return Signal{
		Timeframe: r.Timeframe,
		Asset:     r.Asset,
		Timestamp: r.Timestamp,
		Direction: r.Direction,
	}
}

type ReplaceSignalsRequest struct {
	Signals []SignalRequest `json:"signals" validate:"dive"`
}

type RemoveSignalRequest struct {
	Timestamp string `query:"timestamp" json:"timestamp" validate:"required"`
	Asset     string `query:"asset" json:"asset" validate:"required"`
	Direction string `query:"direction" json:"direction" validate:"required"`
}

type AntidelayRequest struct {
	Seconds *int `json:"seconds" validate:"required"`
}

type FiresRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}
