package source

import "testing"

func TestDir(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"model/box/box.obj", "model/box/"},
		{"box.obj", ""},
		{"a/b", "a/"},
		{"", ""},
		{"dir/", "dir/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Dir(tt.path); got != tt.want {
				t.Errorf("Dir(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		dir, rel string
		want     string
	}{
		{"model/box/", "box.mtl", "model/box/box.mtl"},
		{"", "box.mtl", "box.mtl"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Join(tt.dir, tt.rel); got != tt.want {
				t.Errorf("Join(%q, %q) = %q, want %q", tt.dir, tt.rel, got, tt.want)
			}
		})
	}
}

func TestMemorySource(t *testing.T) {
	src := MemorySource{
		"a.txt":  []byte("hello"),
		"a.json": []byte(`{"k": 1}`),
	}

	text, err := src.Text("a.txt")
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "hello" {
		t.Errorf("Text = %q, want %q", text, "hello")
	}

	doc, err := src.JSON("a.json")
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		t.Fatalf("JSON returned %T, want map", doc)
	}
	if obj["k"].(float64) != 1 {
		t.Errorf("JSON k = %v, want 1", obj["k"])
	}

	if _, err := src.Binary("missing"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMemorySource_BadJSON(t *testing.T) {
	src := MemorySource{"bad.json": []byte("{not json")}
	if _, err := src.JSON("bad.json"); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
