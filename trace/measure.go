// Package trace records pipeline phases in the Chrome trace-event format
// (load the output in chrome://tracing or Perfetto).
package trace

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

type event struct {
	Name string            `json:"name"`
	Ph   string            `json:"ph"`
	Ts   int64             `json:"ts"`
	Pid  int               `json:"pid"`
	Tid  int               `json:"tid"`
	Cat  string            `json:"cat"`
	Args map[string]string `json:"args,omitempty"`
}

// MeasureTime is safe for use from the content and presentation threads at
// once. A nil *MeasureTime records nothing.
type MeasureTime struct {
	w     io.Writer
	lock  sync.Mutex
	now   func() time.Time
	err   error
	ended bool
}

func NewMeasureTime(w io.Writer, process string) *MeasureTime {
	m := &MeasureTime{w: w, now: time.Now}
	m.write("{\"traceEvents\": [")
	m.writeEvent(event{
		Name: "process_name",
		Ph:   "M",
		Ts:   m.now().UnixMicro(),
		Pid:  1,
		Cat:  "__metadata",
		Args: map[string]string{"name": process},
	}, false)
	return m
}

func (m *MeasureTime) Time(name string) {
	m.mark(name, "B")
}

func (m *MeasureTime) Stop(name string) {
	m.mark(name, "E")
}

func (m *MeasureTime) mark(name, ph string) {
	if m == nil {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.ended {
		return
	}
	// note: goroutines have no stable id, so every event shares tid 1
	m.writeEvent(event{Name: name, Ph: ph, Ts: m.now().UnixMicro(), Pid: 1, Tid: 1, Cat: "_"}, true)
}

// Finish closes the JSON document and returns the first write error, if
// any. Later Time/Stop calls are ignored.
func (m *MeasureTime) Finish() error {
	if m == nil {
		return nil
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if !m.ended {
		m.write("]}")
		m.ended = true
	}
	return m.err
}

func (m *MeasureTime) writeEvent(e event, comma bool) {
	data, err := json.Marshal(e)
	if err != nil {
		m.err = err
		return
	}
	if comma {
		m.write(", ")
	}
	m.write(string(data))
}

func (m *MeasureTime) write(s string) {
	if m.err != nil {
		return
	}
	_, m.err = io.WriteString(m.w, s)
}
