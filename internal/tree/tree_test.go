package tree

import "testing"

func TestGetRootPicksMostSpecific(t *testing.T) {
	tr := New()
	tr.Add("/home/user", Recurse)
	tr.Add("/home/user/Downloads", 0)

	tests := []struct {
		name string
		path string
		want string
		ok   bool
	}{
		{"under nested root", "/home/user/Downloads/file.zip", "/home/user/Downloads", true},
		{"under outer root", "/home/user/Documents/a.txt", "/home/user", true},
		{"unrelated path", "/etc/passwd", "", false},
		{"nested root itself", "/home/user/Downloads", "/home/user/Downloads", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, ok := tr.GetRoot(tt.path)
			if ok != tt.ok {
				t.Fatalf("GetRoot(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			}
			if ok && root.Path != tt.want {
				t.Errorf("GetRoot(%q) = %q, want %q", tt.path, root.Path, tt.want)
			}
		})
	}
}

func TestRemoveReparentsChildren(t *testing.T) {
	tr := New()
	tr.Add("/data", Recurse)
	tr.Add("/data/nested", 0)

	tr.Remove("/data")

	root, ok := tr.GetRoot("/data/nested/file.txt")
	if !ok || root.Path != "/data/nested" {
		t.Fatalf("expected /data/nested to survive removal of /data, got %+v ok=%v", root, ok)
	}
	if tr.FileIsRoot("/data") {
		t.Error("expected /data to no longer be a root")
	}
}

func TestFileIsIndexableNonRecursiveRoot(t *testing.T) {
	tr := New()
	tr.Add("/proj", 0) // non-recursive

	if !tr.FileIsIndexable("/proj/a.txt", &Attrs{}) {
		t.Error("direct child of non-recursive root should be indexable")
	}
	if tr.FileIsIndexable("/proj/sub/b.txt", &Attrs{}) {
		t.Error("grandchild of non-recursive root should not be indexable")
	}
	if !tr.FileIsIndexable("/proj", &Attrs{IsDir: true}) {
		t.Error("the root itself is always indexable")
	}
}

func TestFileIsIndexableFilters(t *testing.T) {
	tr := New()
	tr.Add("/proj", Recurse)
	tr.AddFilter(FilterFile, "*.log")
	tr.AddFilter(FilterDirectory, "node_modules")

	if tr.FileIsIndexable("/proj/debug.log", &Attrs{}) {
		t.Error("*.log files should be filtered out")
	}
	if tr.FileIsIndexable("/proj/node_modules", &Attrs{IsDir: true}) {
		t.Error("node_modules directories should be filtered out")
	}
	if !tr.FileIsIndexable("/proj/main.go", &Attrs{}) {
		t.Error("main.go should remain indexable")
	}
}

func TestFileIsIndexableHidden(t *testing.T) {
	tr := New()
	tr.Add("/proj", Recurse)
	tr.SetHiddenFilterEnabled(true)

	if tr.FileIsIndexable("/proj/.secret", &Attrs{}) {
		t.Error("hidden files should be excluded when hidden-filtering is enabled")
	}
	if !tr.FileIsIndexable("/proj/visible.txt", &Attrs{}) {
		t.Error("non-hidden files should remain indexable")
	}
}

func TestParentIsIndexableContentFilter(t *testing.T) {
	tr := New()
	tr.Add("/proj", Recurse)
	tr.AddFilter(FilterParentDirectory, ".ignore")

	if tr.ParentIsIndexable("/proj/sub", []string{".ignore", "main.go"}) {
		t.Error("directory containing .ignore should not be indexable by content")
	}
	if !tr.ParentIsIndexable("/proj/sub", []string{"main.go"}) {
		t.Error("directory without the marker should be indexable by content")
	}
	if !tr.ParentIsIndexable("/proj", []string{".ignore"}) {
		t.Error("the root itself is always indexable by content")
	}
}

func TestNotifyUpdateEmitsExpectedEvents(t *testing.T) {
	tr := New()
	tr.Add("/proj", Recurse)
	tr.Add("/proj/nested", 0)

	var got []Event
	tr.SetListener(func(ev Event) { got = append(got, ev) })

	tr.NotifyUpdate("/proj", false)
	if len(got) != 1 || got[0].Kind != DirectoryUpdated || got[0].Path != "/proj" {
		t.Fatalf("expected single DirectoryUpdated(/proj), got %+v", got)
	}

	got = nil
	tr.NotifyUpdate("/proj/file.txt", false)
	if len(got) != 1 || got[0].Kind != ChildUpdated || got[0].Root != "/proj" {
		t.Fatalf("expected ChildUpdated with root /proj, got %+v", got)
	}

	got = nil
	tr.NotifyUpdate("/proj", true)
	sawUpdated, sawNested := false, false
	for _, ev := range got {
		if ev.Kind == DirectoryUpdated && ev.Path == "/proj" {
			sawUpdated = true
		}
		if ev.Kind == DirectoryUpdated && ev.Path == "/proj/nested" {
			sawNested = true
		}
	}
	if !sawUpdated || !sawNested {
		t.Fatalf("recursive notify should update /proj and nested root, got %+v", got)
	}
}

func TestCheckConfigEmitsOnlyWhenChanged(t *testing.T) {
	tr := New()
	tr.Add("/proj", Recurse)
	snap := tr.TakeSnapshot()

	var got []Event
	tr.SetListener(func(ev Event) { got = append(got, ev) })

	if !tr.CheckConfig(snap) {
		t.Error("identical snapshot should report equal")
	}
	if len(got) != 0 {
		t.Fatalf("equal snapshot should not emit events, got %+v", got)
	}

	tr.Add("/other", 0)
	if tr.CheckConfig(snap) {
		t.Error("changed config should report unequal")
	}
	if len(got) == 0 {
		t.Error("changed config should emit DirectoryUpdated for every root")
	}
}
