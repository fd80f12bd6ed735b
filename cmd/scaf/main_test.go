package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/ormasoftchile/scaf/pkg/command"
	"github.com/ormasoftchile/scaf/pkg/config"
	"github.com/ormasoftchile/scaf/pkg/terminal"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		args []string
		cmd  string
		sub  string
	}{
		{[]string{"boot", "new"}, "boot", "new"},
		{[]string{"boot/new"}, "boot", "new"},
		{[]string{"boot"}, "boot", ""},
		{nil, "", ""},
	}
	for _, tt := range tests {
		c, s := splitArgs(tt.args)
		if c != tt.cmd || s != tt.sub {
			t.Errorf("splitArgs(%v) = %q, %q; want %q, %q", tt.args, c, s, tt.cmd, tt.sub)
		}
	}
}

func withState(t *testing.T) {
	t.Helper()
	prev := state
	state = &app{
		fs:      afero.NewOsFs(),
		workDir: t.TempDir(),
		cfg:     config.Default(),
		sink:    &terminal.Recorder{},
		catalog: &command.Catalog{},
	}
	t.Cleanup(func() { state = prev })
}

func TestActionValidate(t *testing.T) {
	withState(t)
	var out bytes.Buffer
	actionValidateCmd.SetOut(&out)

	if err := runActionValidate(actionValidateCmd, []string{"../../testdata/actions/valid/all-kinds.yaml"}); err != nil {
		t.Fatalf("valid file rejected: %v", err)
	}
	if !strings.Contains(out.String(), "is valid") {
		t.Errorf("output = %q", out.String())
	}

	err := runActionValidate(actionValidateCmd, []string{
		"../../testdata/actions/valid/generate.yaml",
		"../../testdata/actions/invalid/two-variants.yaml",
	})
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("expected one failure, got %v", err)
	}
}

func TestColonHint(t *testing.T) {
	withState(t)
	if got := colonHint("../../testdata/actions/invalid/forgot-colon.yaml"); got == "" {
		t.Error("expected colon hint")
	}
	if got := colonHint("../../testdata/actions/valid/generate.yaml"); got != "" {
		t.Errorf("unexpected hint %q", got)
	}
}

func TestSchemaExport(t *testing.T) {
	var out bytes.Buffer
	schemaExportCmd.SetOut(&out)
	if err := runSchemaExport(schemaExportCmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"actions"`) {
		t.Errorf("schema output missing actions property")
	}
}
