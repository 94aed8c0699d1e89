package sdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/schoolops/campus/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	inner   sdk.InvalidationHandler
	calls   atomic.Int32
	changed atomic.Int32
}

func (c *countingInvalidator) Invalidate(ctx context.Context, credential string) bool {
	c.calls.Add(1)
	ok := c.inner.Invalidate(ctx, credential)
	if ok {
		c.changed.Add(1)
	}
	return ok
}

// pipelineFixture wires a logged-in Controller to an http.Client whose
// Transport is the request pipeline.
type pipelineFixture struct {
	store  *sdk.SessionStore
	ctrl   *sdk.Controller
	client *http.Client
	inval  *countingInvalidator
}

func newPipelineFixture(t *testing.T, session *sdk.Session) *pipelineFixture {
	t.Helper()
	store := newStore(t, nil)
	if session != nil {
		require.NoError(t, store.Write(context.Background(), session))
	}
	ctrl := sdk.NewController(store, nil)
	inval := &countingInvalidator{inner: ctrl}
	return &pipelineFixture{
		store:  store,
		ctrl:   ctrl,
		client: &http.Client{Transport: sdk.NewTransport(store, inval)},
		inval:  inval,
	}
}

func (f *pipelineFixture) get(t *testing.T, ctx context.Context, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTransport_AttachesBearerCredential(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(sdk.RequestIDHeader)
	}))
	defer server.Close()

	f := newPipelineFixture(t, newSession("tok1", 1, "ADMIN"))
	resp := f.get(t, context.Background(), server.URL)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer tok1", gotAuth)
	assert.NotEmpty(t, gotRequestID)
}

func TestTransport_DoesNotModifyCallerRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer server.Close()

	f := newPipelineFixture(t, newSession("tok1", 1, "ADMIN"))
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.Header.Get(sdk.RequestIDHeader))
}

func TestTransport_AnonymousRequestsAreUnmodified(t *testing.T) {
	var gotAuth string
	var sawHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, sawHeader = r.Header["Authorization"]
	}))
	defer server.Close()

	f := newPipelineFixture(t, nil)
	f.get(t, context.Background(), server.URL)
	assert.Empty(t, gotAuth)
	assert.False(t, sawHeader)
}

func TestTransport_WithoutCredentialSkipsAttachment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	f := newPipelineFixture(t, newSession("tok1", 1, "ADMIN"))
	resp := f.get(t, sdk.WithoutCredential(context.Background()), server.URL)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.inval.calls.Load(), "a 401 on a public call is not an invalidation")
	assert.NotNil(t, f.store.Read())
}

func TestTransport_UnauthorizedInvalidatesBeforeReturning(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	f := newPipelineFixture(t, newSession("tok1", 1, "ADMIN"))
	resp := f.get(t, context.Background(), server.URL)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "the original response is passed through")
	assert.Equal(t, int32(1), hits.Load(), "the request is never retried")
	assert.Nil(t, f.store.Read(), "the store is cleared before the call returns")
	assert.False(t, f.ctrl.IsAuthenticated())
	assert.Equal(t, sdk.StateExpired, f.ctrl.State())

	outcome := sdk.NewRouteAuthorizer(sdk.MustNewGuard()).Authorize(f.ctrl.CurrentSession(), "dashboard")
	assert.Equal(t, sdk.RedirectLogin, outcome.Decision)
}

func TestTransport_ConcurrentUnauthorizedInvalidatesOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	f := newPipelineFixture(t, newSession("tok1", 1, "ADMIN"))
	var transitions atomic.Int32
	f.ctrl.OnTransition(func(sdk.Transition) { transitions.Add(1) })

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			resp, err := f.client.Do(req)
			if assert.NoError(t, err) {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.inval.changed.Load())
	assert.Equal(t, int32(1), transitions.Load())
	assert.Nil(t, f.store.Read())
}

func TestTransport_OtherFailuresPassThrough(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		f := newPipelineFixture(t, newSession("tok1", 1, "STUDENT"))
		resp := f.get(t, context.Background(), server.URL)
		assert.Equal(t, status, resp.StatusCode)
		assert.Zero(t, f.inval.calls.Load())
		assert.NotNil(t, f.store.Read(), "status %d must not end the session", status)
		server.Close()
	}
}

func TestTransport_TransportErrorsPassThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	f := newPipelineFixture(t, newSession("tok1", 1, "ADMIN"))
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	_, err = f.client.Do(req)
	assert.Error(t, err)
	assert.NotNil(t, f.store.Read())
}
