package pika

// progress forwards percentages to a caller callback, keeping the sequence
// strictly increasing and within 0..100.
type progress struct {
	fn      ProgressFunc
	last    float64
	started bool
	ceiling float64
}

func newProgress(fn ProgressFunc) *progress {
	return &progress{fn: fn, ceiling: 100}
}

// forward is a ProgressFunc suitable for handing to an Encoder.
func (p *progress) forward(pct float64) {
	if p.fn == nil {
		return
	}
	pct = max(0, min(p.ceiling, pct))
	if p.started && pct <= p.last {
		return
	}
	p.started = true
	p.last = pct
	p.fn(pct)
}

// hold caps forwarded values below 100 until complete is called.
func (p *progress) hold() {
	p.ceiling = 99
}

// complete reports 100 unless it has already been reported.
func (p *progress) complete() {
	p.ceiling = 100
	p.forward(100)
}
