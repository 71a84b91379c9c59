package permission

import "testing"

func TestDeriveEveryClass(t *testing.T) {
	tests := []struct {
		class      Class
		canRead    bool
		canWrite   bool
		canNetwork bool
	}{
		{ClassReadOnlyScan, true, false, false},
		{ClassPlanningSynthesis, true, false, false},
		{ClassRegistryState, true, true, false},
		{ClassWriteGated, true, true, false},
		{ClassControlPlane, true, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			p := Derive(tt.class)
			if p.CanRead != tt.canRead {
				t.Errorf("CanRead = %v, want %v", p.CanRead, tt.canRead)
			}
			if p.CanWrite != tt.canWrite {
				t.Errorf("CanWrite = %v, want %v", p.CanWrite, tt.canWrite)
			}
			if p.CanNetwork != tt.canNetwork {
				t.Errorf("CanNetwork = %v, want %v", p.CanNetwork, tt.canNetwork)
			}
		})
	}
}

func TestDeriveUnknownClassFailsClosed(t *testing.T) {
	p := Derive(Class("FUTURE_CLASS"))
	if !p.CanRead {
		t.Error("unknown class should still be able to read")
	}
	if p.CanWrite {
		t.Error("unknown class must not be able to write")
	}
	if p.CanNetwork {
		t.Error("unknown class must not have network access")
	}
	if len(p.AllowedWritePaths) != 0 {
		t.Errorf("unknown class has allowed write paths: %v", p.AllowedWritePaths)
	}
}

func TestCheckWrite(t *testing.T) {
	tests := []struct {
		name   string
		class  Class
		target string
		want   bool
	}{
		{"read-only scan cannot write", ClassReadOnlyScan, "content/report.md", false},
		{"planning cannot write", ClassPlanningSynthesis, ".warden/state/x.json", false},
		{"registry-state writes state", ClassRegistryState, ".warden/state/runs/abc.json", true},
		{"registry-state writes ledger", ClassRegistryState, ".warden/ledger/entities.json", true},
		{"registry-state cannot touch content", ClassRegistryState, "content/post.md", false},
		{"write-gated writes content", ClassWriteGated, "content/posts/hello.md", true},
		{"write-gated writes artifacts", ClassWriteGated, "artifacts/report.json", true},
		{"write-gated writes cache", ClassWriteGated, ".warden/cache/index.bin", true},
		{"write-gated blocked on src", ClassWriteGated, "src/main.go", false},
		{"write-gated blocked on docs", ClassWriteGated, "docs/README.md", false},
		{"write-gated blocked on tests", ClassWriteGated, "tests/integration/x_test.go", false},
		{"write-gated blocked outside allow list", ClassWriteGated, "random/file.txt", false},
		{"control-plane writes state tree", ClassControlPlane, ".warden/state/chains/run.json", true},
		{"control-plane writes agent definitions", ClassControlPlane, ".warden/agents/scanner.md", true},
		{"control-plane blocked outside warden tree", ClassControlPlane, "src/main.go", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.class).CheckWrite(tt.target)
			if got != tt.want {
				t.Errorf("CheckWrite(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

// A path present in both lists must be rejected: disallow wins.
func TestCheckWriteDisallowPrecedence(t *testing.T) {
	p := Permissions{
		CanWrite:          true,
		AllowedWritePaths: []string{"content/"},
		DisallowedPaths:   []string{"content/secret/"},
	}
	if p.CheckWrite("content/secret/key.txt") {
		t.Error("disallowed prefix must win over overlapping allow")
	}
	if !p.CheckWrite("content/public/page.md") {
		t.Error("non-overlapping path under allow prefix should be permitted")
	}
}

func TestCheckWriteNormalizesTraversal(t *testing.T) {
	p := Derive(ClassWriteGated)
	if p.CheckWrite("content/../src/main.go") {
		t.Error("traversal out of an allowed prefix must be rejected")
	}
	if !p.CheckWrite("./content/notes.md") {
		t.Error("leading ./ should not defeat an allowed prefix")
	}
}

func TestClassIsValid(t *testing.T) {
	for _, c := range Classes() {
		if !c.IsValid() {
			t.Errorf("class %s should be valid", c)
		}
	}
	if Class("nope").IsValid() {
		t.Error("unknown class should be invalid")
	}
}
