package elements

import (
	"github.com/cuemby/clickcore/pkg/config"
	"github.com/cuemby/clickcore/pkg/element"
)

// init registers every concrete element in this package against
// config.Default, so a textual or YAML configuration naming "Queue" or
// "Counter" can resolve a class name to a constructor without either
// frontend importing this package's types by name.
func init() {
	config.Register("Source", func() element.Element { return &Source{} })
	config.Register("Queue", func() element.Element { return &Queue{} })
	config.Register("Discard", func() element.Element { return &Discard{} })
	config.Register("Counter", func() element.Element { return &Counter{} })
	config.Register("Tee", func() element.Element { return &Tee{} })
	config.Register("EtherIPClassifier", func() element.Element { return &EtherIPClassifier{} })
	config.Register("PushOnly", func() element.Element { return &PushOnly{} })
	config.Register("PullOnly", func() element.Element { return &PullOnly{} })
}
