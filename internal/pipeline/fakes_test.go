package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"timetable-collator/internal/model"
	apperrors "timetable-collator/pkg/errors"
)

// ── Fake 上游客户端 ──

type fakeClient struct {
	mu sync.Mutex

	faculties   []model.OrgRef
	departments []model.OrgRef
	modules     map[string][]model.RawModuleInfo // term:dept → 模块
	exams       map[string][]model.RawExam       // term → 考试
	events      map[string][]model.RawLessonEvent

	moduleErrs map[string][]error // term:dept → 依次返回的错误
	examErrs   map[string]error
	calls      map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		modules:    make(map[string][]model.RawModuleInfo),
		exams:      make(map[string][]model.RawExam),
		events:     make(map[string][]model.RawLessonEvent),
		moduleErrs: make(map[string][]error),
		examErrs:   make(map[string]error),
		calls:      make(map[string]int),
	}
}

func (f *fakeClient) count(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
}

func (f *fakeClient) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeClient) FetchFacultyList(_ context.Context) ([]model.OrgRef, error) {
	f.count("faculties")
	return f.faculties, nil
}

func (f *fakeClient) FetchDepartmentList(_ context.Context) ([]model.OrgRef, error) {
	f.count("departments")
	return f.departments, nil
}

func (f *fakeClient) FetchModuleInfo(_ context.Context, term, dept string) ([]model.RawModuleInfo, error) {
	key := term + ":" + dept
	f.count("modules:" + key)

	f.mu.Lock()
	defer f.mu.Unlock()
	if errs := f.moduleErrs[key]; len(errs) > 0 {
		err := errs[0]
		f.moduleErrs[key] = errs[1:]
		return nil, err
	}
	return f.modules[key], nil
}

func (f *fakeClient) FetchExams(_ context.Context, term string) ([]model.RawExam, error) {
	f.count("exams:" + term)
	if err := f.examErrs[term]; err != nil {
		return nil, err
	}
	return f.exams[term], nil
}

func (f *fakeClient) FetchTimetable(_ context.Context, term string, fn func(model.RawLessonEvent)) error {
	f.count("timetable:" + term)
	for _, ev := range f.events[term] {
		fn(ev)
	}
	return nil
}

// ── 记录 TTL 的缓存 ──

type recordingCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newRecordingCache() *recordingCache {
	return &recordingCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *recordingCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *recordingCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *recordingCache) ttl(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ttl, ok := c.ttls[key]
	return ttl, ok
}

var (
	errTransient = apperrors.Transient("fake", errors.New("502"))
	errAuth      = apperrors.Auth("fake", errors.New("401"))
	errNotFound  = apperrors.NotFound("fake", errors.New("404"))
	errInvalid   = apperrors.Validation("fake", errors.New("bad body"))
)
