package airtable

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(url string) Options {
	return Options{
		APIKey:       "pat-test",
		BaseURL:      url,
		RetryCount:   2,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	}
}

func writePage(t *testing.T, w http.ResponseWriter, ids []string, offset string) {
	t.Helper()
	page := listResponse{Offset: offset}
	for _, id := range ids {
		page.Records = append(page.Records, Record{ID: id, Fields: map[string]any{"Name": "Meeting " + id}})
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(page))
}

func TestTable_Select(t *testing.T) {
	t.Run("Should follow offsets until the last page", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			assert.Equal(t, "/appBase/tblMeetings", r.URL.Path)
			assert.Equal(t, "Bearer pat-test", r.Header.Get("Authorization"))
			assert.Equal(t, "TSML Export", r.URL.Query().Get("view"))
			assert.Equal(t, "100", r.URL.Query().Get("pageSize"))
			switch r.URL.Query().Get("offset") {
			case "":
				writePage(t, w, []string{"rec1", "rec2"}, "itr2")
			case "itr2":
				writePage(t, w, []string{"rec3"}, "itr3")
			case "itr3":
				writePage(t, w, []string{"rec4"}, "")
			default:
				t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
			}
		}))
		defer srv.Close()

		reg := NewRegistry(testOptions(srv.URL))
		records, err := reg.Base("appBase").Table("tblMeetings").Select(t.Context(), SelectOptions{View: "TSML Export"})
		require.NoError(t, err)
		ids := make([]string, 0, len(records))
		for _, rec := range records {
			ids = append(ids, rec.ID)
		}
		assert.Equal(t, []string{"rec1", "rec2", "rec3", "rec4"}, ids)
		assert.Equal(t, "Meeting rec3", records[2].Fields["Name"])
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("Should return no records when a later page fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("offset") == "" {
				writePage(t, w, []string{"rec1"}, "itr2")
				return
			}
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"NOT_FOUND"}`))
		}))
		defer srv.Close()

		records, err := NewRegistry(testOptions(srv.URL)).Base("appBase").Table("tblMeetings").Select(t.Context(), SelectOptions{})
		assert.Nil(t, records)
		var ferr *FetchError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, http.StatusNotFound, ferr.Status)
		assert.Equal(t, "tblMeetings", ferr.Table)
		assert.Contains(t, ferr.Error(), "NOT_FOUND")
	})

	t.Run("Should retry when rate limited", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			writePage(t, w, []string{"rec1"}, "")
		}))
		defer srv.Close()

		records, err := NewRegistry(testOptions(srv.URL)).Base("appBase").Table("tblMeetings").Select(t.Context(), SelectOptions{})
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("Should give up after the configured retries", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewRegistry(testOptions(srv.URL)).Base("appBase").Table("tblMeetings").Select(t.Context(), SelectOptions{})
		var ferr *FetchError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, http.StatusServiceUnavailable, ferr.Status)
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("Should stop at MaxRecords", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "3", r.URL.Query().Get("maxRecords"))
			writePage(t, w, []string{"rec1", "rec2", "rec3", "rec4"}, "more")
		}))
		defer srv.Close()

		records, err := NewRegistry(testOptions(srv.URL)).Base("appBase").Table("tblMeetings").Select(t.Context(), SelectOptions{MaxRecords: 3})
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("Should report transport errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		opts := testOptions(url)
		opts.RetryCount = 0
		_, err := NewRegistry(opts).Base("appBase").Table("tblMeetings").Select(t.Context(), SelectOptions{})
		var ferr *FetchError
		require.ErrorAs(t, err, &ferr)
		assert.Zero(t, ferr.Status)
		assert.Error(t, ferr.Unwrap())
	})
}

func TestRegistry(t *testing.T) {
	t.Run("Should cache bases by ID", func(t *testing.T) {
		reg := NewRegistry(Options{APIKey: "k"})
		assert.Same(t, reg.Base("appA"), reg.Base("appA"))
		assert.NotSame(t, reg.Base("appA"), reg.Base("appB"))
	})

	t.Run("Should build one client under concurrent first use", func(t *testing.T) {
		reg := NewRegistry(Options{APIKey: "k"})
		bases := make([]*Base, 16)
		var wg sync.WaitGroup
		for i := range bases {
			wg.Add(1)
			go func() {
				defer wg.Done()
				bases[i] = reg.Base("appA")
			}()
		}
		wg.Wait()
		for _, b := range bases {
			assert.Same(t, bases[0], b)
			assert.Same(t, reg.client, b.client)
		}
	})

	t.Run("Should apply defaults", func(t *testing.T) {
		reg := NewRegistry(Options{PageSize: 500})
		assert.Equal(t, DefaultBaseURL, reg.opts.BaseURL)
		assert.Equal(t, DefaultRequestTimeout, reg.opts.RequestTimeout)
		assert.Equal(t, DefaultPageSize, reg.opts.PageSize)
	})
}

func TestSource_FetchRows(t *testing.T) {
	t.Run("Should convert records into rows in order", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writePage(t, w, []string{"recB", "recA"}, "")
		}))
		defer srv.Close()

		src := &Source{Registry: NewRegistry(testOptions(srv.URL)), BaseID: "appBase", TableID: "tblMeetings"}
		rows, err := src.FetchRows(t.Context())
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "recB", rows[0].ID)
		assert.Equal(t, "Meeting recA", rows[1].Fields["Name"])
	})
}
