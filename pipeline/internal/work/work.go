// Package work defines the items that flow from the dispatcher to workers.
package work

import "github.com/rulstream/rulstream/pkg/types"

// Item is either a Record to score or a Shutdown sentinel.
type Item interface {
	isItem()
}

// Record is one sensor record. Seq is its 0-based position within its
// engine's stream and fixes the order of that engine's log lines.
type Record struct {
	types.SensorRecord
	Seq int
}

// Shutdown tells exactly one worker to stop.
type Shutdown struct{}

func (Record) isItem()   {}
func (Shutdown) isItem() {}
