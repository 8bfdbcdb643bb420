package main

import (
	"flag"
	"testing"
)

func TestRootCmdLoadConfig(t *testing.T) {
	tests := []struct {
		name string // description of this test case
		// Named input parameters for target function.
		args    []string
		wantErr bool
	}{
		{
			name: "absent default tolerated",
			args: nil,
		},
		{
			name:    "explicit file must exist",
			args:    []string{"-config", "missing.yaml"},
			wantErr: true,
		},
		{
			// passing the default path explicitly still requires the file
			name:    "explicit default path must exist",
			args:    []string{"-config", defaultConfigFile},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())

			var cmd rootCmd
			fs := flag.NewFlagSet("winbuild", flag.ContinueOnError)
			cmd.RegisterFlags(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatal(err)
			}

			_, gotErr := cmd.loadConfig()
			if gotErr != nil {
				if !tt.wantErr {
					t.Errorf("loadConfig() failed: %v", gotErr)
				}
				return
			}
			if tt.wantErr {
				t.Fatal("loadConfig() succeeded unexpectedly")
			}
		})
	}
}
