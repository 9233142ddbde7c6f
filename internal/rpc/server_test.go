package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relfiles/internal/cache"
	"relfiles/internal/coupling"
	"relfiles/internal/errors"
	"relfiles/internal/related"
	"relfiles/internal/slogutil"
)

type stubAnalyzer struct {
	mu    sync.Mutex
	calls int
	byKey map[string][]coupling.Candidate
	err   error
}

func (a *stubAnalyzer) Analyze(_ context.Context, root, file string, _ coupling.Settings) ([]coupling.Candidate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.byKey[file], nil
}

type response struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

// run feeds lines to a fresh server and returns responses keyed by raw id.
func run(t *testing.T, a related.Analyzer, lines ...string) map[string]response {
	t.Helper()
	svc := related.NewService(cache.New(), a, nil, slogutil.NewDiscardLogger())
	s := NewServer("test", svc, slogutil.NewDiscardLogger())

	var out bytes.Buffer
	s.SetStdin(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	s.SetStdout(&out)
	require.NoError(t, s.Serve(context.Background()))

	got := map[string]response{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var r response
		require.NoError(t, json.Unmarshal([]byte(line), &r), line)
		assert.Equal(t, "2.0", r.Jsonrpc)
		got[string(r.Id)] = r
	}
	return got
}

func TestServer_GetRelatedFiles(t *testing.T) {
	a := &stubAnalyzer{byKey: map[string][]coupling.Candidate{
		"/ws/a.txt": {{Path: "/ws/b.txt", Count: 2}, {Path: "/ws/c.txt", Count: 1}},
	}}

	got := run(t, a,
		`{"jsonrpc":"2.0","id":1,"method":"relatedFiles/get","params":{"workspace":"/ws","file":"a.txt"}}`,
	)

	r, ok := got["1"]
	require.True(t, ok)
	require.Nil(t, r.Error)

	var result FilesResult
	require.NoError(t, json.Unmarshal(r.Result, &result))
	assert.Equal(t, []related.FileView{
		{Path: "/ws/b.txt", Label: "b.txt", Count: 2, Description: "2 commits"},
		{Path: "/ws/c.txt", Label: "c.txt", Count: 1, Description: "1 commit"},
	}, result.Files)
}

func TestServer_ErrorsBecomeEmptyResults(t *testing.T) {
	a := &stubAnalyzer{err: errors.NewNotARepositoryError("/ws", nil)}

	got := run(t, a,
		`{"jsonrpc":"2.0","id":"x","method":"relatedFiles/get","params":{"workspace":"/ws","file":"a.txt"}}`,
	)

	r := got[`"x"`]
	require.Nil(t, r.Error)
	assert.JSONEq(t, `{"files":[]}`, string(r.Result))
}

func TestServer_ProtocolErrors(t *testing.T) {
	got := run(t, &stubAnalyzer{},
		`{"jsonrpc":"2.0","id":1,"method":"nope"}`,
		`{"jsonrpc":"2.0","id":2,"method":"relatedFiles/get","params":{"workspace":"/ws"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"relatedFiles/get","params":"bad"}`,
		`{"jsonrpc":"1.0","id":4,"method":"relatedFiles/sweep"}`,
		`not json`,
	)

	require.NotNil(t, got["1"].Error)
	assert.Equal(t, MethodNotFound, got["1"].Error.Code)
	require.NotNil(t, got["2"].Error)
	assert.Equal(t, InvalidParams, got["2"].Error.Code)
	require.NotNil(t, got["3"].Error)
	assert.Equal(t, InvalidParams, got["3"].Error.Code)
	require.NotNil(t, got["4"].Error)
	assert.Equal(t, InvalidRequest, got["4"].Error.Code)
	require.NotNil(t, got[""].Error)
	assert.Equal(t, ParseError, got[""].Error.Code)
}

func TestServer_NotificationsGetNoResponse(t *testing.T) {
	a := &stubAnalyzer{}
	got := run(t, a,
		`{"jsonrpc":"2.0","method":"relatedFiles/preload","params":{"workspace":"/ws","file":"a.txt"}}`,
		`{"jsonrpc":"2.0","method":"unknown/notification"}`,
	)
	assert.Empty(t, got)
}

func TestServer_InvalidateRefreshSweep(t *testing.T) {
	a := &stubAnalyzer{byKey: map[string][]coupling.Candidate{
		"/ws/a.txt": {{Path: "/ws/b.txt", Count: 1}},
	}}
	svc := related.NewService(cache.New(), a, nil, slogutil.NewDiscardLogger())
	s := NewServer("test", svc, slogutil.NewDiscardLogger())

	call := func(line string) response {
		var out bytes.Buffer
		s.SetStdin(strings.NewReader(line + "\n"))
		s.SetStdout(&out)
		require.NoError(t, s.Serve(context.Background()))
		var r response
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &r))
		require.Nil(t, r.Error)
		return r
	}

	call(`{"jsonrpc":"2.0","id":1,"method":"relatedFiles/get","params":{"workspace":"/ws","file":"a.txt"}}`)
	call(`{"jsonrpc":"2.0","id":2,"method":"relatedFiles/get","params":{"workspace":"/ws","file":"a.txt"}}`)
	assert.Equal(t, 1, a.calls)

	r := call(`{"jsonrpc":"2.0","id":3,"method":"relatedFiles/refresh","params":{"workspace":"/ws","file":"a.txt"}}`)
	assert.JSONEq(t, `{"files":[{"path":"/ws/b.txt","label":"b.txt","count":1,"description":"1 commit"}]}`, string(r.Result))
	assert.Equal(t, 2, a.calls)

	r = call(`{"jsonrpc":"2.0","id":4,"method":"relatedFiles/invalidate","params":{"workspace":"/ws","file":"a.txt"}}`)
	assert.JSONEq(t, `{"cleared":1}`, string(r.Result))

	call(`{"jsonrpc":"2.0","id":5,"method":"relatedFiles/get","params":{"workspace":"/ws","file":"a.txt"}}`)
	r = call(`{"jsonrpc":"2.0","id":6,"method":"relatedFiles/refresh","params":{}}`)
	assert.JSONEq(t, `{"cleared":1}`, string(r.Result))

	r = call(`{"jsonrpc":"2.0","id":7,"method":"relatedFiles/sweep"}`)
	assert.JSONEq(t, `{"evicted":0}`, string(r.Result))
}

func TestServer_ShutdownStopsReading(t *testing.T) {
	a := &stubAnalyzer{}
	got := run(t, a,
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","id":2,"method":"shutdown"}`,
		`{"jsonrpc":"2.0","id":3,"method":"relatedFiles/get","params":{"workspace":"/ws","file":"a.txt"}}`,
	)

	var init InitializeResult
	require.NoError(t, json.Unmarshal(got["1"].Result, &init))
	assert.Equal(t, "relfiles", init.Name)
	assert.Equal(t, "test", init.Version)
	assert.Contains(t, init.Methods, "relatedFiles/get")

	assert.JSONEq(t, `{}`, string(got["2"].Result))
	_, answered := got["3"]
	assert.False(t, answered)
	assert.Zero(t, a.calls)
}

func TestServer_ContextCanceled(t *testing.T) {
	svc := related.NewService(cache.New(), &stubAnalyzer{}, nil, slogutil.NewDiscardLogger())
	s := NewServer("test", svc, slogutil.NewDiscardLogger())

	pr, pw := io.Pipe()
	defer pw.Close()
	s.SetStdin(pr)
	s.SetStdout(&bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Serve(ctx))
}
