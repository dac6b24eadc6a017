package weibo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfileURL(t *testing.T) {
	url := ProfileURL(BaseURL, "1234567890")
	assert.Equal(t, "https://m.weibo.cn/api/container/getIndex?type=uid&value=1234567890", url)
}

func TestFeedURLPageBased(t *testing.T) {
	url := FeedURL(BaseURL, "107603123", 3, "")
	assert.Equal(t, "https://m.weibo.cn/api/container/getIndex?containerid=107603123&page=3", url)
}

func TestFeedURLTokenWinsOverPage(t *testing.T) {
	url := FeedURL(BaseURL, "107603123", 5, "4890")
	assert.Contains(t, url, "since_id=4890")
	assert.NotContains(t, url, "page=")
}

func TestFeedURLClampsPage(t *testing.T) {
	url := FeedURL(BaseURL, "107603123", 0, "")
	assert.Contains(t, url, "page=1")
}

func TestStatusURL(t *testing.T) {
	url := StatusURL(BaseURL, "Nc8Xw1234")
	assert.Equal(t, "https://m.weibo.cn/statuses/show?id=Nc8Xw1234", url)
}

func TestIsValidUID(t *testing.T) {
	tests := []struct {
		uid   string
		valid bool
	}{
		{"1234567890", true},
		{"1", true},
		{"", false},
		{"12a4567890", false},
		{"-123", false},
		{"123456789012345678901", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidUID(tt.uid), "uid %q", tt.uid)
	}
}

func TestSanitizeUID(t *testing.T) {
	assert.Equal(t, "1234567890", SanitizeUID("  1234567890 "))
	assert.Equal(t, "1234567890", SanitizeUID("https://m.weibo.cn/u/1234567890"))
	assert.Equal(t, "1234567890", SanitizeUID("1234567890"))
}
