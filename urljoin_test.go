package proxy

import "testing"

func TestUrlJoin(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{[]string{"", "x"}, "x"},
		{[]string{"http://a", "/b"}, "http://a/b"},
		{[]string{"/a/", "/b"}, "/a/b"},
		{[]string{"/a", "b", "c"}, "/a/b/c"},
		{[]string{"/a", "/b?x=1&y=2"}, "/a/b?x=1&y=2"},
		{[]string{"", ""}, ""},
		{[]string{"/a//", "//b"}, "/a/b"},
	}
	for _, c := range cases {
		got := urlJoin(c.in...)
		if got != c.want {
			t.Errorf("urlJoin(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestUrlJoinNeverTouchesQuery(t *testing.T) {
	got := urlJoin("/api", "/search?q=a/b/c&r=1")
	want := "/api/search?q=a/b/c&r=1"
	if got != want {
		t.Errorf("urlJoin query preserved = %q, want %q", got, want)
	}
}
