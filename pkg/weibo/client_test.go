package weibo

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbarchive/pkg/config"
	errs "wbarchive/pkg/errors"
	"wbarchive/pkg/feed"
	"wbarchive/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *logger.TestLogger) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.Weibo.Cookie = "SUB=test"
	cfg.Weibo.RequestTimeout = 5 * time.Second
	cfg.Retry.MaxAttempts = 1

	log := logger.NewTestLogger()
	client := NewClient(cfg, log)
	client.SetBaseURL(server.URL)
	return client, log
}

func TestClientSendsConfiguredHeaders(t *testing.T) {
	var gotCookie, gotUA string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"ok":1,"data":{}}`))
	}))

	var resp IndexResponse
	err := client.GetJSON(client.baseURL+IndexEndpoint, &resp)
	require.NoError(t, err)

	assert.Equal(t, "SUB=test", gotCookie)
	assert.NotEmpty(t, gotUA)
}

func TestGetJSONStatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		wantType errs.ErrorType
	}{
		{http.StatusUnauthorized, errs.ErrorTypeAuth},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusTeapot, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		var out map[string]interface{}
		err := client.GetJSON(client.baseURL+"/x", &out)
		require.Error(t, err, "status %d", tt.status)

		var apiErr *errs.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tt.wantType, apiErr.Type, "status %d", tt.status)
		assert.Equal(t, tt.status, apiErr.Code)
	}
}

func TestGetJSONParseError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>login page</html>"))
	}))

	var out map[string]interface{}
	err := client.GetJSON(client.baseURL+"/x", &out)
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeParsing, apiErr.Type)
}

func TestResolveFeed(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "uid", r.URL.Query().Get("type"))
		assert.Equal(t, "123456", r.URL.Query().Get("value"))
		w.Write([]byte(`{
			"ok": 1,
			"data": {
				"userInfo": {"id": 123456, "screen_name": "tester"},
				"tabsInfo": {"tabs": [
					{"tab_type": "profile", "containerid": "2302834"},
					{"tab_type": "weibo", "containerid": "1076036"}
				]}
			}
		}`))
	}))

	f, err := client.ResolveFeed("123456")
	require.NoError(t, err)
	assert.Equal(t, "tester", f.ScreenName)
	assert.Equal(t, "1076036", f.ContainerID)
	assert.Equal(t, "123456", f.UID)
}

func TestResolveFeedMissingWeiboTab(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":1,"data":{"tabsInfo":{"tabs":[{"tab_type":"profile","containerid":"x"}]}}}`))
	}))

	_, err := client.ResolveFeed("123456")
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeParsing, apiErr.Type)
}

func TestFetchPageNormalizesItems(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1076036", r.URL.Query().Get("containerid"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte(`{
			"ok": 1,
			"data": {
				"cardlistInfo": {"since_id": 4890123},
				"cards": [
					{"card_type": 11},
					{"card_type": 9, "mblog": {
						"bid": "AAA111",
						"created_at": "Sat Jun 01 12:00:00 +0800 2025",
						"text": "hello",
						"user": {"id": 123456},
						"pics": [{"large": {"url": "https://wx1.sinaimg.cn/large/a.jpg"}}]
					}}
				]
			}
		}`))
	}))

	items, next, err := client.FetchPage(&Feed{UID: "123456", ContainerID: "1076036"}, feed.Cursor{Page: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "AAA111", items[0].ID)

	require.NotNil(t, next)
	assert.Equal(t, "4890123", next.Token)
	assert.Equal(t, 1, next.Page)
}

func TestFetchPageEndOfFeed(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":0,"data":{"cards":[]}}`))
	}))

	items, next, err := client.FetchPage(&Feed{ContainerID: "1076036"}, feed.FirstPage())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Nil(t, next)
}

func TestFetchPagePageBasedAdvance(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":1,"data":{"cards":[{"card_type":9,"mblog":{"bid":"AAA111"}}]}}`))
	}))

	_, next, err := client.FetchPage(&Feed{ContainerID: "1076036"}, feed.Cursor{Page: 4})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "", next.Token)
	assert.Equal(t, 5, next.Page)
}

func TestFetchItem(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StatusEndpoint, r.URL.Path)
		assert.Equal(t, "AAA111", r.URL.Query().Get("id"))
		w.Write([]byte(`{"ok":1,"data":{"bid":"AAA111","user":{"id":123456},"text":"solo"}}`))
	}))

	item, err := client.FetchItem("AAA111")
	require.NoError(t, err)
	assert.Equal(t, "AAA111", item.ID)
	assert.Equal(t, "https://weibo.com/123456/AAA111", item.URL)
}

func TestFetchItemNoData(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":0}`))
	}))

	_, err := client.FetchItem("AAA111")
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeNotFound, apiErr.Type)
}

func TestDownloadMedia(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))

	data, err := client.DownloadMedia(client.baseURL + "/large/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}
