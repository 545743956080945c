package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != version {
		t.Errorf("expected %q, got %q", version, got)
	}
}

func TestRootCmd_has_serve_flags(t *testing.T) {
	root := newRootCmd()
	if root.Flags().Lookup("env-file") == nil {
		t.Error("expected root command to accept --env-file")
	}
}
