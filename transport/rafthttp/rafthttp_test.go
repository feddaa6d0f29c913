package rafthttp_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dmaxwell/raft"
	"github.com/dmaxwell/raft/transport/rafthttp"
)

// TestMain verifies that Stop actually quiesces the ticker and event
// loop goroutines Start spawns, leaving nothing running behind a
// stopped Transport.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockMux struct {
	registry map[string]http.HandlerFunc
}

func newMockMux() *mockMux {
	return &mockMux{registry: map[string]http.HandlerFunc{}}
}

func (m *mockMux) HandleFunc(path string, h func(http.ResponseWriter, *http.Request)) {
	m.registry[path] = h
}

func (m *mockMux) call(t *testing.T, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	handler, ok := m.registry[path]
	require.True(t, ok, "path %s not registered", path)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestHandlerInstallRegistersMessagePath(t *testing.T) {
	transport := rafthttp.NewTransport("127.0.0.1:0")
	var received []raft.Message
	require.NoError(t, transport.Start(1, "127.0.0.1:0", 1000, func(uint64) {}, func(m raft.Message) {
		received = append(received, m)
	}))
	defer transport.Stop(func() {})

	h := &rafthttp.Handler{Transport: transport}
	m := newMockMux()
	h.Install(m)

	msg := raft.Message{ServerID: 2, RequestVote: &raft.RequestVote{Term: 1, CandidateID: 2}}
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	w := m.call(t, rafthttp.MessagePath, body)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return len(received) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, uint64(2), received[0].ServerID)
	require.NotNil(t, received[0].RequestVote)
}

type recordedCall struct {
	msg raft.Message
}

type fakeRecorder struct {
	recv []recordedCall
	sent []recordedCall
}

func (f *fakeRecorder) RecordMessageRecv(msg raft.Message) {
	f.recv = append(f.recv, recordedCall{msg: msg})
}

func (f *fakeRecorder) RecordMessageSent(msg raft.Message) {
	f.sent = append(f.sent, recordedCall{msg: msg})
}

func TestObserveReportsSentAndReceivedMessages(t *testing.T) {
	transport := rafthttp.NewTransport("127.0.0.1:0")
	rec := &fakeRecorder{}
	transport.Observe(rec)
	require.NoError(t, transport.Start(1, "127.0.0.1:0", 1000, func(uint64) {}, func(raft.Message) {}))
	defer transport.Stop(func() {})

	h := &rafthttp.Handler{Transport: transport}
	m := newMockMux()
	h.Install(m)

	msg := raft.Message{ServerID: 2, RequestVote: &raft.RequestVote{Term: 1, CandidateID: 2}}
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	m.call(t, rafthttp.MessagePath, body)

	require.Eventually(t, func() bool { return len(rec.recv) == 1 }, time.Second, time.Millisecond)
	require.NotNil(t, rec.recv[0].msg.RequestVote)

	transport.Send(raft.Server{ID: 3, Address: "127.0.0.1:0"}, raft.Message{AppendEntries: &raft.AppendEntries{}}, func(raft.Status) {})
	require.Len(t, rec.sent, 1)
	require.NotNil(t, rec.sent[0].msg.AppendEntries)
}

func TestHandlerRejectsMalformedBody(t *testing.T) {
	transport := rafthttp.NewTransport("127.0.0.1:0")
	require.NoError(t, transport.Start(1, "127.0.0.1:0", 1000, func(uint64) {}, func(raft.Message) {}))
	defer transport.Stop(func() {})

	h := &rafthttp.Handler{Transport: transport}
	m := newMockMux()
	h.Install(m)

	w := m.call(t, rafthttp.MessagePath, []byte("not json"))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
