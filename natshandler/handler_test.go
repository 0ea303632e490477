package natshandler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codemate/executor"
	"codemate/service"
)

type recorder struct {
	mu   sync.Mutex
	sent map[string][]byte
}

func (r *recorder) Publish(subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = make(map[string][]byte)
	}
	r.sent[subject] = data
	return nil
}

func (r *recorder) decode(t *testing.T, subject string) map[string]any {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.sent[subject]
	require.True(t, ok, "no reply on %s", subject)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

type inlinePool struct {
	exec *executor.Executor
}

func (p inlinePool) Do(ctx context.Context, task executor.Task) error {
	task(ctx, p.exec)
	return nil
}

func newHandler(t *testing.T) (*Handler, *recorder) {
	t.Helper()
	pool := inlinePool{exec: executor.New(nil, executor.DefaultOptions())}
	svc := service.NewCodeService(pool, service.Config{MaxCodeLength: 10000})
	rec := &recorder{}
	return NewHandler(svc, rec, zap.NewNop(), 5*time.Second), rec
}

func TestExecuteRequest(t *testing.T) {
	h, rec := newHandler(t)

	h.Routes()[SubjectExecute](&nats.Msg{
		Subject: SubjectExecute,
		Reply:   "_INBOX.1",
		Data:    []byte(`{"code":"console.log(1 + 1)"}`),
	})

	out := rec.decode(t, "_INBOX.1")
	assert.Equal(t, true, out["success"])
	assert.Equal(t, []any{"[LOG] 2"}, out["logs"])
}

func TestValidateRequest(t *testing.T) {
	h, rec := newHandler(t)

	body, err := json.Marshal(map[string]string{
		"implementation": "const sq = n => n * n; module.exports = { sq };",
		"tests":          "test('squares', () => { expect(sq(3)).toBe(9); });",
	})
	require.NoError(t, err)
	h.Routes()[SubjectValidate](&nats.Msg{Subject: SubjectValidate, Reply: "_INBOX.2", Data: body})

	out := rec.decode(t, "_INBOX.2")
	assert.EqualValues(t, 1, out["passing"])
	assert.EqualValues(t, 0, out["failing"])
}

func TestMalformedRequest(t *testing.T) {
	h, rec := newHandler(t)

	h.Routes()[SubjectDiff](&nats.Msg{Subject: SubjectDiff, Reply: "_INBOX.3", Data: []byte("{")})

	out := rec.decode(t, "_INBOX.3")
	assert.Equal(t, "Invalid Request Format", out["status_message"])
}

func TestServiceErrorStillReplies(t *testing.T) {
	h, rec := newHandler(t)

	h.Routes()[SubjectGenerateTests](&nats.Msg{Subject: SubjectGenerateTests, Reply: "_INBOX.4", Data: []byte(`{"feature":"x"}`)})

	out := rec.decode(t, "_INBOX.4")
	assert.Equal(t, "Generation Disabled", out["status_message"])
}

func TestNoReplySubject(t *testing.T) {
	h, rec := newHandler(t)

	h.Routes()[SubjectExtract](&nats.Msg{Subject: SubjectExtract, Data: []byte(`{"tests":"test('a', () => {});"}`)})

	assert.Empty(t, rec.sent)
}

func TestAddTestCaseSubject(t *testing.T) {
	h, rec := newHandler(t)

	h.Routes()[SubjectAddTestCase](&nats.Msg{
		Subject: SubjectAddTestCase,
		Reply:   "_INBOX.5",
		Data:    []byte(`{"tests":"test('a', () => {});","testCase":"test('b', () => {});"}`),
	})

	out := rec.decode(t, "_INBOX.5")
	assert.Equal(t, "Success", out["status_message"])
	assert.Equal(t, "test('a', () => {});\n\ntest('b', () => {});\n", out["tests"])
}

func TestRoutesCoverEverySubject(t *testing.T) {
	h, _ := newHandler(t)

	routes := h.Routes()
	for _, subject := range []string{
		SubjectExecute, SubjectValidate, SubjectDiff, SubjectExtract, SubjectAddTestCase,
		SubjectGenerateTests, SubjectGenerateImplementation, SubjectAutoFix,
	} {
		assert.Contains(t, routes, subject)
	}
}
