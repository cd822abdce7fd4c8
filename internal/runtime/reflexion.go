package runtime

import "sync/atomic"

// Reflexion counts completed reflexion loops.
type Reflexion struct {
	loops atomic.Int64
}

// Loop runs one reflexion loop and returns the new total.
func (r *Reflexion) Loop() int64 {
	return r.loops.Add(1)
}

func (r *Reflexion) LoopsRun() int64 {
	return r.loops.Load()
}

func (r *Reflexion) Reset() {
	r.loops.Store(0)
}
