package params

const (
	// PageSize is the size of one wasm linear memory page in bytes.
	PageSize uint32 = 64 * 1024

	// DefaultMaxMemoryPages bounds the linear memory a contract may import.
	DefaultMaxMemoryPages uint32 = 16
	// DefaultMaxCodeSize is the byte size limit enforced by deploy_code.
	DefaultMaxCodeSize uint32 = 512 * 1024
	// DefaultMaxEventTopics bounds the topics of one deposited event.
	DefaultMaxEventTopics uint32 = 4
	// DefaultMaxSubjectLen bounds the subject of a randomness request.
	DefaultMaxSubjectLen uint32 = 32
	// DefaultMaxValueSize bounds a single contract storage value.
	DefaultMaxValueSize uint32 = 16 * 1024

	// APIBatchSize is the constant batch multiplier applied to host API
	// scenarios. Repeating every host call APIBatchSize times per unit of the
	// varied dimension keeps the fixed dispatch overhead a constant share of
	// the sample so it cannot pollute the fitted slope.
	APIBatchSize uint32 = 100
)

// Schedule is the set of limits the runtime imposes on contract modules.
// Scenario generators read it so that generated fixtures stay within what
// deploy_code would accept.
type Schedule struct {
	Version        uint32
	MaxMemoryPages uint32
	MaxCodeSize    uint32
	MaxEventTopics uint32
	MaxSubjectLen  uint32
	MaxValueSize   uint32
}

// DefaultSchedule returns the schedule the runtime ships with.
func DefaultSchedule() *Schedule {
	return &Schedule{
		Version:        1,
		MaxMemoryPages: DefaultMaxMemoryPages,
		MaxCodeSize:    DefaultMaxCodeSize,
		MaxEventTopics: DefaultMaxEventTopics,
		MaxSubjectLen:  DefaultMaxSubjectLen,
		MaxValueSize:   DefaultMaxValueSize,
	}
}

// MaxMemoryBytes returns the largest linear memory a contract may import.
func (s *Schedule) MaxMemoryBytes() uint32 {
	return s.MaxMemoryPages * PageSize
}
