package analyst

import (
	"sync"

	"github.com/kdl-rgb/bytells/internal/query"
)

// Sink receives the visible side effects of a run in order.
type Sink interface {
	ShowSQL(partial string)
	ShowTable(result query.Result)
	ShowChart(id string, result query.Result)
	SetStatus(status Status)
}

// Recorder is a Sink that keeps everything it is shown.
type Recorder struct {
	mu       sync.Mutex
	sql      string
	reveals  int
	statuses []Status
	table    *query.Result
	chartID  string
}

func (r *Recorder) ShowSQL(partial string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sql = partial
	r.reveals++
}

func (r *Recorder) ShowTable(result query.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = &result
}

func (r *Recorder) ShowChart(id string, _ query.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chartID = id
}

func (r *Recorder) SetStatus(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

// SQL is the latest revealed prefix.
func (r *Recorder) SQL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sql
}

func (r *Recorder) Reveals() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reveals
}

func (r *Recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

// Table returns the shown result, if any.
func (r *Recorder) Table() (query.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.table == nil {
		return query.Result{}, false
	}
	return *r.table, true
}

func (r *Recorder) ChartID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chartID
}

type multiSink []Sink

// Tee fans every call out to each sink in order.
func Tee(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) ShowSQL(partial string) {
	for _, s := range m {
		s.ShowSQL(partial)
	}
}

func (m multiSink) ShowTable(result query.Result) {
	for _, s := range m {
		s.ShowTable(result)
	}
}

func (m multiSink) ShowChart(id string, result query.Result) {
	for _, s := range m {
		s.ShowChart(id, result)
	}
}

func (m multiSink) SetStatus(status Status) {
	for _, s := range m {
		s.SetStatus(status)
	}
}
