package identity

import "context"

// FakeProbe returns a fixed list of components.
type FakeProbe struct {
	Name   string
	Values []Component
	Calls  int
}

func NewFakeProbe(components ...Component) *FakeProbe {
	return &FakeProbe{Name: "fake", Values: components}
}

func (p *FakeProbe) Platform() string { return p.Name }

func (p *FakeProbe) Components(context.Context) []Component {
	p.Calls++
	out := make([]Component, len(p.Values))
	copy(out, p.Values)
	return out
}
