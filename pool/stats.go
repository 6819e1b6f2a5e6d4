package pool

import "time"

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Name         string `json:"name"`
	MaxSize      int32  `json:"max_size"`
	Total        int32  `json:"total"`
	Idle         int32  `json:"idle"`
	InUse        int32  `json:"in_use"`
	Constructing int32  `json:"constructing"`

	AcquireCount         int64         `json:"acquire_count"`
	AcquireDuration      time.Duration `json:"acquire_duration"`
	EmptyAcquireCount    int64         `json:"empty_acquire_count"`
	CanceledAcquireCount int64         `json:"canceled_acquire_count"`

	Created            int64 `json:"created"`
	Destroyed          int64 `json:"destroyed"`
	ValidationFailures int64 `json:"validation_failures"`
	IdleEvictions      int64 `json:"idle_evictions"`
	LifetimeEvictions  int64 `json:"lifetime_evictions"`
	Exhausted          int64 `json:"exhausted"`
}

// Stats returns current pool statistics
func (p *Pool) Stats() Stats {
	st := p.res.Stat()
	return Stats{
		Name:         p.policy.Name,
		MaxSize:      st.MaxResources(),
		Total:        st.TotalResources(),
		Idle:         st.IdleResources(),
		InUse:        st.AcquiredResources(),
		Constructing: st.ConstructingResources(),

		AcquireCount:         st.AcquireCount(),
		AcquireDuration:      st.AcquireDuration(),
		EmptyAcquireCount:    st.EmptyAcquireCount(),
		CanceledAcquireCount: st.CanceledAcquireCount(),

		Created:            p.created.Load(),
		Destroyed:          p.destroyed.Load(),
		ValidationFailures: p.validationFailures.Load(),
		IdleEvictions:      p.idleEvictions.Load(),
		LifetimeEvictions:  p.lifetimeEvictions.Load(),
		Exhausted:          p.exhausted.Load(),
	}
}
