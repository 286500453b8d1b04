// Package testutil provides in-memory stand-ins for the external systems the
// server talks to, shared by the package test suites.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sigilo/go-sigilo-server/email"
	"github.com/sigilo/go-sigilo-server/render"
	"github.com/sigilo/go-sigilo-server/repository"
	"github.com/sigilo/go-sigilo-server/types"
)

// MemRepo is an in-memory Repository with CouchDB-like revision semantics:
// updating an existing document with a stale or missing _rev fails with
// ErrConflict.
type MemRepo struct {
	mu   sync.Mutex
	name string
	docs map[string][]byte
	revs map[string]int
}

func NewMemRepo(name string) *MemRepo {
	return &MemRepo{
		name: name,
		docs: make(map[string][]byte),
		revs: make(map[string]int),
	}
}

func (m *MemRepo) GetByID(ctx context.Context, id string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (m *MemRepo) Save(ctx context.Context, docID string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rev, exists := m.revs[docID]; exists {
		given, _ := doc["_rev"].(string)
		if given != revString(rev) {
			return types.ErrConflict
		}
	}
	m.revs[docID]++
	doc["_rev"] = revString(m.revs[docID])
	doc["_id"] = docID
	stored, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[docID] = stored
	return nil
}

func (m *MemRepo) Update(ctx context.Context, id string, data interface{}) error {
	return m.Save(ctx, id, data)
}

func (m *MemRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return types.ErrNotFound
	}
	delete(m.docs, id)
	delete(m.revs, id)
	return nil
}

func (m *MemRepo) Find(ctx context.Context, query map[string]interface{}) (interface{}, error) {
	selector, _ := query["selector"].(map[string]interface{})

	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]json.RawMessage, 0)
	for _, raw := range m.docs {
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if matchesSelector(doc, selector) {
			docs = append(docs, append(json.RawMessage{}, raw...))
		}
	}
	return json.Marshal(map[string]interface{}{"docs": docs})
}

func (m *MemRepo) GetDBName() string {
	return m.name
}

func (m *MemRepo) GetClient() interface{} {
	return nil
}

func matchesSelector(doc map[string]interface{}, selector map[string]interface{}) bool {
	for field, cond := range selector {
		if op, isOp := cond.(map[string]interface{}); isOp {
			if lt, ok := op["$lt"]; ok {
				val, _ := doc[field].(float64)
				if !(val < toFloat(lt)) {
					return false
				}
			}
			continue
		}
		if doc[field] != cond {
			return false
		}
	}
	return true
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func revString(rev int) string {
	return fmt.Sprintf("%d-mem", rev)
}

// MemSelector serves one MemRepo per database name
type MemSelector struct {
	repos map[string]repository.Repository
}

func NewMemSelector() *MemSelector {
	sel := &MemSelector{repos: make(map[string]repository.Repository)}
	for _, name := range []string{
		repository.KeyPair,
		repository.SignableItem,
		repository.Signer,
		repository.Signature,
		repository.Certificate,
		repository.IssuanceBatch,
	} {
		sel.repos[name] = NewMemRepo(name)
	}
	return sel
}

func (s *MemSelector) ChooseDB(name string) (repository.Repository, error) {
	repo, ok := s.repos[name]
	if !ok {
		return nil, types.ErrNotFound
	}
	return repo, nil
}

// MemArtifacts is an in-memory ArtifactStore
type MemArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemArtifacts() *MemArtifacts {
	return &MemArtifacts{objects: make(map[string][]byte)}
}

func (m *MemArtifacts) Upload(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte{}, content...)
	return "mem://" + key, nil
}

func (m *MemArtifacts) Download(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return append([]byte{}, content...), nil
}

func (m *MemArtifacts) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// StubRenderer appends a readable marker per stamp, the output is a pure
// function of the input
type StubRenderer struct {
	pages []render.PageDim
}

func NewStubRenderer() *StubRenderer {
	return &StubRenderer{pages: []render.PageDim{{Width: 612, Height: 792}}}
}

func (r *StubRenderer) PageDimensions(src []byte) ([]render.PageDim, error) {
	return r.pages, nil
}

func (r *StubRenderer) StampImage(src []byte, pos types.SignaturePosition, image []byte) ([]byte, error) {
	marker := fmt.Sprintf("\nimage@%d:%d,%d", pos.Page, pos.X, pos.Y)
	return append(append([]byte{}, src...), []byte(marker)...), nil
}

func (r *StubRenderer) StampText(src []byte, pos types.SignaturePosition, text string, points int) ([]byte, error) {
	marker := fmt.Sprintf("\ntext@%d:%d,%d:%s", pos.Page, pos.X, pos.Y, text)
	return append(append([]byte{}, src...), []byte(marker)...), nil
}

// FakeRedis implements types.RedisStore on plain maps. Only the commands the
// services actually use are covered.
type FakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	hashes map[string]map[string]int64
}

func NewFakeRedis() *FakeRedis {
	return &FakeRedis{
		values: make(map[string]string),
		hashes: make(map[string]map[string]int64),
	}
}

func (f *FakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *FakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *FakeRedis) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.hashes[key]
	if !ok {
		hash = make(map[string]int64)
		f.hashes[key] = hash
	}
	hash[field] += incr
	return redis.NewIntResult(hash[field], nil)
}

func (f *FakeRedis) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.hashes[key]))
	for field, val := range f.hashes[key] {
		out[field] = fmt.Sprintf("%d", val)
	}
	return redis.NewMapStringStringResult(out, nil)
}

// FakeEnqueuer implements types.TaskClient, recording tasks instead of
// pushing them to redis. Task IDs deduplicate the way asynq does.
type FakeEnqueuer struct {
	mu      sync.Mutex
	tasks   []*asynq.Task
	taskIDs map[string]bool
}

func NewFakeEnqueuer() *FakeEnqueuer {
	return &FakeEnqueuer{taskIDs: make(map[string]bool)}
}

func (f *FakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := ""
	for _, opt := range opts {
		if opt.Type() == asynq.TaskIDOpt {
			id, _ = opt.Value().(string)
		}
	}
	if id != "" {
		if f.taskIDs[id] {
			return nil, asynq.ErrTaskIDConflict
		}
		f.taskIDs[id] = true
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: id, Type: task.Type(), Payload: task.Payload()}, nil
}

func (f *FakeEnqueuer) Close() error {
	return nil
}

// Tasks returns the enqueued tasks of the given type, all of them when the
// type is empty
func (f *FakeEnqueuer) Tasks(taskType string) []*asynq.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*asynq.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		if taskType == "" || t.Type() == taskType {
			out = append(out, t)
		}
	}
	return out
}

// SentMail is one delivery recorded by MemMail
type SentMail struct {
	To       string
	Subject  string
	Body     string
	Filename string
}

// MemMail is an email.Handler that records sends in memory. Setting Err makes
// every send fail with it until Reset.
type MemMail struct {
	mu   sync.Mutex
	Err  error
	sent []SentMail
}

func NewMemMail() *MemMail {
	return &MemMail{}
}

func (m *MemMail) Send(ctx context.Context, to, subject, body string, attachment *email.Attachment) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	mail := SentMail{To: to, Subject: subject, Body: body}
	if attachment != nil {
		mail.Filename = attachment.Filename
	}
	m.sent = append(m.sent, mail)
	return fmt.Sprintf("mem-%d", len(m.sent)), nil
}

func (m *MemMail) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail{}, m.sent...)
}

func (m *MemMail) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = nil
	m.sent = nil
}
