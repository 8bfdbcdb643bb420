package main

import (
	"testing"
)

func TestFindLatestVersion(t *testing.T) {
	tests := []struct {
		testName string // description of this test case
		// Named input parameters for target function.
		versions    []string
		constraints string
		prefix      string
		want        string
		wantErr     bool
	}{
		{
			testName:    "latest",
			versions:    []string{"v1.0.27", "v1.0.29", "v1.0.28"},
			constraints: "latest",
			want:        "v1.0.29",
		},
		{
			testName:    "wildcard",
			versions:    []string{"v0.1.0", "v0.0.1"},
			constraints: "*",
			want:        "v0.1.0",
		},
		{
			testName:    "upper bound",
			versions:    []string{"v1.0.29", "v1.0.28", "v1.0.27"},
			constraints: "<1.0.29",
			want:        "v1.0.28",
		},
		{
			testName:    "tag prefix",
			versions:    []string{"libusb-1.0.27", "libusb-1.0.29"},
			constraints: "*",
			prefix:      "libusb-",
			want:        "libusb-1.0.29",
		},
		{
			testName:    "prefixed constraint",
			versions:    []string{"jq-1.7.1"},
			constraints: ">1.7.0",
			prefix:      "jq-",
			want:        "jq-1.7.1",
		},
		{
			testName:    "prerelease excluded",
			versions:    []string{"0.1.0", "1.0.0-rc1"},
			constraints: "latest",
			want:        "0.1.0",
		},
		{
			testName:    "no match",
			versions:    []string{"v1.0.27"},
			constraints: ">=2.0.0",
			wantErr:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.testName, func(t *testing.T) {
			got, gotErr := FindLatestVersion(tt.versions, tt.constraints, tt.prefix)
			if gotErr != nil {
				if !tt.wantErr {
					t.Errorf("FindLatestVersion() failed: %v", gotErr)
				}
				return
			}
			if tt.wantErr {
				t.Fatal("FindLatestVersion() succeeded unexpectedly")
			}
			if got != tt.want {
				t.Errorf("FindLatestVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}
