package rag

// State is a stage of a chat run.
type State int

const (
	StateStart State = iota
	StateEmbeddingQuery
	StateRetrieving
	StateFormatting
	StatePrompting
	StateGenerating
	StateDone
	StateError
)

var stateNames = [...]string{
	StateStart:          "START",
	StateEmbeddingQuery: "EMBEDDING_QUERY",
	StateRetrieving:     "RETRIEVING",
	StateFormatting:     "FORMATTING",
	StatePrompting:      "PROMPTING",
	StateGenerating:     "GENERATING",
	StateDone:           "DONE",
	StateError:          "ERROR",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

func (s State) terminal() bool {
	return s == StateDone || s == StateError
}
