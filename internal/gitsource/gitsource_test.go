package gitsource

import "testing"

func TestIsGitURL(t *testing.T) {
	testCases := []struct {
		path string
		want bool
	}{
		{"https://github.com/user/decks", true},
		{"http://example.org/decks", true},
		{"git@github.com:user/decks.git", true},
		{"/srv/decks.git", true},
		{"/home/user/notes", false},
		{"notes", false},
	}

	for _, tc := range testCases {
		if got := IsGitURL(tc.path); got != tc.want {
			t.Errorf("IsGitURL(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
