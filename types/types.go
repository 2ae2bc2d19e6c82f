package types

// Metadata is the fixed metadata record stored next to every chunk.
// Only the source is ever read or written.
type Metadata struct {
	Source string `json:"source"`
}

// Record is the persisted unit of the vector store.
type Record struct {
	ID        string
	Embedding []float32
	Content   string
	Metadata  Metadata
}

// RetrievedChunk is one nearest-neighbour hit. Lower distance means more similar.
type RetrievedChunk struct {
	ID       string
	Content  string
	Source   string
	Distance float64
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Persona shapes the system prompt. It is owned by the settings store
// and read-only for the pipeline.
type Persona struct {
	AIName  string `json:"ai_name" yaml:"ai_name"`
	AIRole  string `json:"ai_role" yaml:"ai_role"`
	AITone  string `json:"ai_tone" yaml:"ai_tone"`
	Company string `json:"company" yaml:"company"`
}

func DefaultPersona() Persona {
	return Persona{
		AIName:  "AI Assistant",
		AIRole:  "Customer Service AI",
		AITone:  "friendly, helpful, enthusiastic and engaging",
		Company: "-",
	}
}

// Merge returns p with every non-empty field of upd applied.
func (p Persona) Merge(upd Persona) Persona {
	if upd.AIName != "" {
		p.AIName = upd.AIName
	}
	if upd.AIRole != "" {
		p.AIRole = upd.AIRole
	}
	if upd.AITone != "" {
		p.AITone = upd.AITone
	}
	if upd.Company != "" {
		p.Company = upd.Company
	}
	return p
}

// Document is the output of a loader: plain text plus the identifier
// that becomes the source metadata of every chunk.
type Document struct {
	Text   string
	Source string
}
