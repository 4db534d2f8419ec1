package pipeline

// State is the per-frame processing state. Every frame returns the pipeline to StateIdle.
type State int

const (
	StateIdle State = iota
	StateDetecting
	StateProcessing
	StateValidated
)

var stateNames = [...]string{"idle", "detecting", "processing", "validated"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrorKind classifies a frame failure.
type ErrorKind string

const (
	KindRecognition ErrorKind = "recognition_failure"
	KindParse       ErrorKind = "parse_failure"
	KindValidation  ErrorKind = "validation_failure"
)
