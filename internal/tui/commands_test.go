package tui

import (
	"testing"

	"github.com/zpdzap/katarunner/internal/sandbox"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantArgs []string
		wantNil  bool
	}{
		{"/remove 5B3F8C91A2", "remove", []string{"5B3F8C91A2"}, false},
		{"rm 5B3F8C91A2", "rm", []string{"5B3F8C91A2"}, false},
		{"  /Sweep  ", "sweep", nil, false},
		{"/quit", "quit", nil, false},
		{"/", "", nil, true},
		{"   ", "", nil, true},
		{"", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd := ParseCommand(tt.input)
			if tt.wantNil {
				if cmd != nil {
					t.Errorf("expected nil, got %+v", cmd)
				}
				return
			}
			if cmd == nil {
				t.Fatal("expected command, got nil")
			}
			if cmd.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cmd.Name, tt.wantName)
			}
			if len(cmd.Args) != len(tt.wantArgs) {
				t.Fatalf("Args = %v, want %v", cmd.Args, tt.wantArgs)
			}
			for i := range cmd.Args {
				if cmd.Args[i] != tt.wantArgs[i] {
					t.Errorf("Args[%d] = %q, want %q", i, cmd.Args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestCommandTarget(t *testing.T) {
	volume := sandbox.NameFor(sandbox.KindVolume, "5B3F8C91A2")
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"/remove 5B3F8C91A2", "5B3F8C91A2", false},
		{"/remove " + volume, volume, false},
		{"/remove", "", true},
		{"/remove 5B3F8C91A2 extra", "", true},
		{"/remove 5b3f8c91a2", "", true},
		{"/remove lion", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.input).Target()
		if (err != nil) != tt.wantErr {
			t.Errorf("Target(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("Target(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
