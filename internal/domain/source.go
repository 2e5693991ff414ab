package domain

// Source identifies the feed a token candidate was discovered on.
type Source string

const (
	SourceSimulated  Source = "SIMULATED"
	SourcePumpPortal Source = "PUMPPORTAL"
	SourceReplay     Source = "REPLAY"
	SourceManual     Source = "MANUAL"
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s Source) IsValid() bool {
	switch s {
	case SourceSimulated, SourcePumpPortal, SourceReplay, SourceManual:
		return true
	}
	return false
}
