// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"strings"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origInfo    Info
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origInfo = *buildInfo

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*buildInfo = origInfo

	os.Exit(exitCode)
}

func setFlags(name, tm, commit, version string) {
	buildName = name
	buildTime = tm
	buildCommit = commit
	buildVersion = version
	*buildInfo = origInfo
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		flags      [4]string
		wantErrMsg string
	}{
		{"Missing BuildName", [4]string{"", "2025-04-13", "abcdef1", "v1.0.0"}, "BuildName is required"},
		{"Missing BuildTime", [4]string{"audioscope", "", "abcdef1", "v1.0.0"}, "BuildTime is required"},
		{"Missing BuildCommit", [4]string{"audioscope", "2025-04-13", "", "v1.0.0"}, "BuildCommit is required"},
		{"Missing BuildVersion", [4]string{"audioscope", "2025-04-13", "abcdef1", ""}, "BuildVersion is required"},
		{"All present", [4]string{"audioscope", "2025-04-13", "abcdef1", "v1.0.0"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setFlags(tt.flags[0], tt.flags[1], tt.flags[2], tt.flags[3])

			err := Initialize()
			if tt.wantErrMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				info := GetBuildInfo()
				if info.Name != tt.flags[0] || info.Version != tt.flags[3] {
					t.Errorf("info not copied: %+v", info)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErrMsg) {
				t.Fatalf("error = %v, want %q", err, tt.wantErrMsg)
			}
			if GetBuildInfo().Version != origInfo.Version {
				t.Errorf("defaults overwritten on failed Initialize")
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	info := &Info{Version: "v0.3.0", Commit: "abc123", Time: "2025-04-13"}
	want := "v0.3.0 (commit abc123, built 2025-04-13)"
	if got := info.VersionString(); got != want {
		t.Errorf("VersionString() = %q, want %q", got, want)
	}
}
