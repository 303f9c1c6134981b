package elements

import "github.com/cuemby/clickcore/pkg/element"

// PushOnly and PullOnly exist purely to exercise the router's
// push/pull-mismatch connection-legality check:
// connecting a push-only output to a pull-only input must be rejected
// during Build, never silently accepted.

// PushOnly has a single push-only output and no inputs.
type PushOnly struct {
	element.BaseElement
}

func (*PushOnly) ClassName() string { return "PushOnly" }

func (*PushOnly) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(0), element.Fixed(1)
}

func (*PushOnly) Processing() ([]element.Direction, []element.Direction) {
	return nil, []element.Direction{element.Push}
}

// PullOnly has a single pull-only input and no outputs.
type PullOnly struct {
	element.BaseElement
}

func (*PullOnly) ClassName() string { return "PullOnly" }

func (*PullOnly) PortCount() (element.PortCount, element.PortCount) {
	return element.Fixed(1), element.Fixed(0)
}

func (*PullOnly) Processing() ([]element.Direction, []element.Direction) {
	return []element.Direction{element.Pull}, nil
}
