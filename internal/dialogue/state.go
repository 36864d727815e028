package dialogue

type State int32

const (
	Listening State = iota
	Capturing
	Generating
	Speaking
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Capturing:
		return "capturing"
	case Generating:
		return "generating"
	case Speaking:
		return "speaking"
	}
	return "unknown"
}
