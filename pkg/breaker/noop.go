package breaker

// Noop 不做任何熔断，始终放行
type Noop struct{}

func (n *Noop) Allow() bool {
	return true
}

func (n *Noop) Success() {}

func (n *Noop) Failure() {}

func (n *Noop) State() State {
	return StateClosed
}
