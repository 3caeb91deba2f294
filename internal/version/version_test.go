package version

import "testing"

func setBuild(t *testing.T, v, c, d string) {
	t.Helper()
	prevV, prevC, prevD := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = prevV, prevC, prevD })
}

func TestDefaultsAreNotEmpty(t *testing.T) {
	if GetVersion() == "" || GetCommit() == "" || GetDate() == "" {
		t.Fatalf("build info must have defaults: %q %q %q", GetVersion(), GetCommit(), GetDate())
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name                  string
		version, commit, date string
		want                  string
	}{
		{
			name:    "release build",
			version: "v1.4.0", commit: "3f2a9c1d8e7b6a5f", date: "2026-09-30",
			want: "order-service v1.4.0 (commit 3f2a9c1, built 2026-09-30)",
		},
		{
			name:    "local build",
			version: "dev", commit: "unknown", date: "unknown",
			want: "order-service dev (commit unknown, built unknown)",
		},
		{
			name:    "short commit is kept",
			version: "v0.1.0", commit: "abc", date: "2026-01-01",
			want: "order-service v0.1.0 (commit abc, built 2026-01-01)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBuild(t, tt.version, tt.commit, tt.date)
			if got := String("order-service"); got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFields(t *testing.T) {
	setBuild(t, "v2.0.0", "0123456789abcdef", "2026-10-01")

	fields := Fields()
	if fields["version"] != "v2.0.0" || fields["commit"] != "0123456" || fields["build_date"] != "2026-10-01" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
