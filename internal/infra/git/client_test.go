package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_URLToDirectoryName(t *testing.T) {
	client := NewClient("", "")

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "HTTPS形式のURL",
			url:      "https://github.com/user/repo.git",
			expected: "github.com/user/repo",
		},
		{
			name:     "拡張子なしのHTTPS形式のURL",
			url:      "https://github.com/user/repo",
			expected: "github.com/user/repo",
		},
		{
			name:     "SSH形式のURL",
			url:      "git@github.com:user/repo.git",
			expected: "github.com/user/repo",
		},
		{
			name:     "ポート付きのURL",
			url:      "https://gitlab.example.com:8080/group/project.git",
			expected: "gitlab.example.com/group/project",
		},
		{
			name:     "ネストしたグループのURL",
			url:      "https://gitlab.example.com/group/subgroup/project.git",
			expected: "gitlab.example.com/group/subgroup/project",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dirName, err := client.URLToDirectoryName(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, dirName)
		})
	}
}

func TestPreparer_ValidateLocator(t *testing.T) {
	preparer := NewPreparer(NewClient("", ""), nil, t.TempDir(), "main")

	tests := []struct {
		name    string
		locator string
		wantErr bool
	}{
		{
			name:    "HTTPS形式のURL",
			locator: "https://github.com/user/repo.git",
			wantErr: false,
		},
		{
			name:    "SSH形式のURL",
			locator: "git@github.com:user/repo.git",
			wantErr: false,
		},
		{
			name:    "空文字",
			locator: "",
			wantErr: true,
		},
		{
			name:    "空白のみ",
			locator: "   ",
			wantErr: true,
		},
		{
			name:    "ホスト名のない文字列",
			locator: "not-a-repository",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := preparer.ValidateLocator(tt.locator)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRepoName(t *testing.T) {
	tests := []struct {
		name     string
		locator  string
		expected string
	}{
		{
			name:     "HTTPS形式のURL",
			locator:  "https://github.com/user/repo.git",
			expected: "repo",
		},
		{
			name:     "SSH形式のURL",
			locator:  "git@github.com:user/my-project.git",
			expected: "my-project",
		},
		{
			name:     "末尾スラッシュ付きのURL",
			locator:  "https://github.com/user/repo/",
			expected: "repo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, repoName(tt.locator))
		})
	}
}
