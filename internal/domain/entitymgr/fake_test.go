package entitymgr

import (
	"context"
	"strings"
	"sync"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
)

// fakeBinding is an in-memory collection with failure injection.
type fakeBinding struct {
	mu     sync.Mutex
	rows   []Record
	nextID int64
	calls  map[string]int

	failCreate error
	failDelete error
	failGetAll error

	gates   map[string]chan struct{} // Search(q) blocks until the gate closes
	entered chan string
}

func newFakeBinding(rows ...Record) *fakeBinding {
	f := &fakeBinding{
		calls:   make(map[string]int),
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 16),
		nextID:  100,
	}
	for _, r := range rows {
		f.rows = append(f.rows, r.Clone())
	}
	return f
}

func (f *fakeBinding) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeBinding) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBinding) list(match func(Record) bool) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, 0, len(f.rows))
	for _, r := range f.rows {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (f *fakeBinding) GetAll(ctx context.Context) ([]Record, error) {
	f.count("getAll")
	if f.failGetAll != nil {
		return nil, f.failGetAll
	}
	return f.list(func(Record) bool { return true }), nil
}

func (f *fakeBinding) Search(ctx context.Context, q string) ([]Record, error) {
	f.count("search")
	select {
	case f.entered <- q:
	default:
	}
	f.mu.Lock()
	gate := f.gates[q]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	q = strings.ToLower(q)
	return f.list(func(r Record) bool {
		name, _ := r["name"].(string)
		return strings.Contains(strings.ToLower(name), q)
	}), nil
}

func (f *fakeBinding) Create(ctx context.Context, data Record) (Record, error) {
	f.count("create")
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	row := data.Clone()
	row["id"] = id.ID(f.nextID)
	f.rows = append(f.rows, row)
	return row.Clone(), nil
}

func (f *fakeBinding) Update(ctx context.Context, itemID id.ID, data Record) (Record, error) {
	f.count("update")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if rid, _ := RecordID(r); rid == itemID {
			for k, v := range data.Clone() {
				f.rows[i][k] = v
			}
			return f.rows[i].Clone(), nil
		}
	}
	return nil, apperror.NewUpstream(404, "not found")
}

func (f *fakeBinding) Delete(ctx context.Context, itemID id.ID) error {
	f.count("delete")
	if f.failDelete != nil {
		return f.failDelete
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if rid, _ := RecordID(r); rid == itemID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return apperror.NewUpstream(404, "not found")
}
