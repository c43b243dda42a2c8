package telegram

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
)

type apiCall struct {
	Method string
	Form   url.Values
}

// fakeAPI is a stand-in Bot API server that records every call.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	results map[string]string
	errs    map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	_ = r.ParseForm()

	w.Header().Set("Content-Type", "application/json")
	if method == "getMe" {
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Games","username":"games_bot"}}`)
		return
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Form: r.PostForm})
	desc, failing := f.errs[method]
	result, ok := f.results[method]
	f.mu.Unlock()

	if failing {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": desc})
		return
	}
	if !ok {
		result = "true"
	}
	fmt.Fprintf(w, `{"ok":true,"result":%s}`, result)
}

func (f *fakeAPI) last(t *testing.T) apiCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func newFakeAPI(t *testing.T) (*fakeAPI, *tgbotapi.BotAPI) {
	t.Helper()
	f := &fakeAPI{results: map[string]string{}, errs: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint("TOKEN", srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	return f, api
}
