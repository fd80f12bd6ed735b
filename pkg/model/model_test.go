package model

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestPutIfAbsentFirstWriterWins(t *testing.T) {
	m := New()
	if !m.PutIfAbsent("x", 42) {
		t.Fatal("first write should store")
	}
	if m.PutIfAbsent("x", 7) {
		t.Fatal("second write should not store")
	}
	if m["x"] != 42 {
		t.Errorf("x = %v, want 42", m["x"])
	}
}

func TestMergeKeepsExistingAndAppendsDependencies(t *testing.T) {
	m := Model{"name": "cli"}
	m.AddDependencies(Dependency{ArtifactID: "a", Source: "pom.xml"})

	m.Merge(Model{
		"name":          "populator",
		"extra":         true,
		DependenciesKey: []Dependency{{ArtifactID: "b", Source: "go.mod"}},
	})

	if m["name"] != "cli" {
		t.Errorf("name = %v, want cli", m["name"])
	}
	if m["extra"] != true {
		t.Errorf("extra = %v, want true", m["extra"])
	}
	got := m.Dependencies()
	want := []Dependency{{ArtifactID: "a", Source: "pom.xml"}, {ArtifactID: "b", Source: "go.mod"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestHasArtifact(t *testing.T) {
	m := New()
	if m.HasDependencyFacts() {
		t.Error("empty model should have no dependency facts")
	}
	m.AddDependencies(Dependency{ArtifactID: "spring-boot-starter-web"})
	tests := []struct {
		id   string
		want bool
	}{
		{"spring-boot-starter-web", true},
		{"  Spring-Boot-Starter-Web ", true},
		{"spring-boot-starter-data-jpa", false},
	}
	for _, tt := range tests {
		if got := m.HasArtifact(tt.id); got != tt.want {
			t.Errorf("HasArtifact(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestToKebab(t *testing.T) {
	tests := map[string]string{
		"packageName":   "package-name",
		"name":          "name",
		"HTTPServer":    "httpserver",
		"outputTmpFile": "output-tmp-file",
		"already-kebab": "already-kebab",
	}
	for in, want := range tests {
		if got := ToKebab(in); got != want {
			t.Errorf("ToKebab(%q) = %q, want %q", in, got, want)
		}
	}
}

const testPom = `<?xml version="1.0" encoding="UTF-8"?>
<project>
  <parent>
    <groupId>org.springframework.boot</groupId>
    <artifactId>spring-boot-starter-parent</artifactId>
    <version>3.1.0</version>
  </parent>
  <artifactId>demo</artifactId>
  <version>0.0.1-SNAPSHOT</version>
  <name>demo</name>
  <dependencies>
    <dependency>
      <groupId>org.springframework.boot</groupId>
      <artifactId>spring-boot-starter-web</artifactId>
    </dependency>
    <dependency>
      <groupId>com.h2database</groupId>
      <artifactId>h2</artifactId>
      <scope>runtime</scope>
    </dependency>
  </dependencies>
</project>
`

func TestMavenPopulator(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/work/pom.xml", []byte(testPom), 0o644); err != nil {
		t.Fatal(err)
	}

	m := New()
	if err := Populate(context.Background(), m, "/work", &MavenPopulator{Fs: fsys}); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if m["maven-artifact-id"] != "demo" {
		t.Errorf("maven-artifact-id = %v", m["maven-artifact-id"])
	}
	if m["maven-group-id"] != "org.springframework.boot" {
		t.Errorf("maven-group-id = %v, want inherited parent group", m["maven-group-id"])
	}
	if !m.HasArtifact("h2") || !m.HasArtifact("spring-boot-starter-web") {
		t.Errorf("dependencies = %+v", m.Dependencies())
	}
}

func TestMavenPopulatorMissingPom(t *testing.T) {
	additions, err := (&MavenPopulator{Fs: afero.NewMemMapFs()}).Populate(context.Background(), "/work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(additions) != 0 {
		t.Errorf("additions = %v, want empty", additions)
	}
}

func TestGoModPopulator(t *testing.T) {
	fsys := afero.NewMemMapFs()
	gomod := `module github.com/acme/widget

go 1.22

require (
	github.com/spf13/cobra v1.8.0
	gopkg.in/yaml.v3 v3.0.1
	github.com/acme/lib/v2 v2.1.0
)
`
	if err := afero.WriteFile(fsys, "/work/go.mod", []byte(gomod), 0o644); err != nil {
		t.Fatal(err)
	}

	m := New()
	if err := Populate(context.Background(), m, "/work", &GoModPopulator{Fs: fsys}); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if m["go-module"] != "github.com/acme/widget" {
		t.Errorf("go-module = %v", m["go-module"])
	}
	if m["go-module-name"] != "widget" {
		t.Errorf("go-module-name = %v", m["go-module-name"])
	}
	for _, id := range []string{"cobra", "yaml.v3", "lib"} {
		if !m.HasArtifact(id) {
			t.Errorf("missing artifact %q in %+v", id, m.Dependencies())
		}
	}
}

func TestPopulatorsByName(t *testing.T) {
	fsys := afero.NewMemMapFs()
	ps, err := PopulatorsByName(fsys, []string{"maven", "go"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 2 || ps[0].Name() != "maven" || ps[1].Name() != "gomod" {
		t.Errorf("unexpected populators %v", ps)
	}
	if _, err := PopulatorsByName(fsys, []string{"gradle"}); err == nil {
		t.Error("expected error for unknown populator")
	}
}
