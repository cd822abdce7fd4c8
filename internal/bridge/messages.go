package bridge

// Completion messages. Each carries the dispatch sequence number and either a
// decoded payload or the failure.
type (
	GraphLoadedMsg struct {
		Seq  uint64
		Text string
		Err  error
	}

	ReflexionDoneMsg struct {
		Seq   uint64
		Loops int64
		Err   error
	}

	PerceptionDoneMsg struct {
		Seq   uint64
		Input string
		Reply string
		Err   error
	}

	CLIDoneMsg struct {
		Seq   uint64
		Input string
		Reply string
		Err   error
	}
)
