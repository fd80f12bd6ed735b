package model

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/mod/modfile"
)

// Populator contributes derived facts about the project in the working
// directory. It returns only its additions; the caller merges them.
type Populator interface {
	Name() string
	Populate(ctx context.Context, workingDir string) (Model, error)
}

// Populate runs every populator in order and merges their additions into m.
// A populator that finds nothing to describe returns an empty model.
func Populate(ctx context.Context, m Model, workingDir string, populators ...Populator) error {
	for _, p := range populators {
		if err := ctx.Err(); err != nil {
			return err
		}
		additions, err := p.Populate(ctx, workingDir)
		if err != nil {
			return fmt.Errorf("populator %s: %w", p.Name(), err)
		}
		m.Merge(additions)
	}
	return nil
}

// MavenModelKey holds the parsed *MavenProject.
const MavenModelKey = "maven-model"

// MavenProject is the subset of a pom.xml read by MavenPopulator.
type MavenProject struct {
	XMLName      xml.Name          `xml:"project"`
	GroupID      string            `xml:"groupId"`
	ArtifactID   string            `xml:"artifactId"`
	Version      string            `xml:"version"`
	Name         string            `xml:"name"`
	Description  string            `xml:"description"`
	Parent       *MavenParent      `xml:"parent"`
	Dependencies []MavenDependency `xml:"dependencies>dependency"`
}

// MavenParent is the <parent> element.
type MavenParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// MavenDependency is a <dependency> element.
type MavenDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}

// MavenPopulator reads pom.xml in the working directory.
type MavenPopulator struct {
	Fs afero.Fs
}

func (p *MavenPopulator) Name() string { return "maven" }

func (p *MavenPopulator) Populate(ctx context.Context, workingDir string) (Model, error) {
	path := filepath.Join(workingDir, "pom.xml")
	data, err := afero.ReadFile(fsOrOS(p.Fs), path)
	if errors.Is(err, fs.ErrNotExist) {
		return Model{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var project MavenProject
	if err := xml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	groupID := project.GroupID
	if groupID == "" && project.Parent != nil {
		groupID = project.Parent.GroupID
	}

	deps := make([]Dependency, 0, len(project.Dependencies))
	for _, d := range project.Dependencies {
		deps = append(deps, Dependency{
			GroupID:    strings.TrimSpace(d.GroupID),
			ArtifactID: strings.TrimSpace(d.ArtifactID),
			Version:    strings.TrimSpace(d.Version),
			Source:     "pom.xml",
		})
	}

	return Model{
		MavenModelKey:       &project,
		"maven-group-id":    groupID,
		"maven-artifact-id": project.ArtifactID,
		"maven-version":     project.Version,
		"maven-name":        project.Name,
		"maven-description": project.Description,
		DependenciesKey:     deps,
	}, nil
}

// GoModPopulator reads go.mod in the working directory.
type GoModPopulator struct {
	Fs afero.Fs
}

func (p *GoModPopulator) Name() string { return "gomod" }

func (p *GoModPopulator) Populate(ctx context.Context, workingDir string) (Model, error) {
	path := filepath.Join(workingDir, "go.mod")
	data, err := afero.ReadFile(fsOrOS(p.Fs), path)
	if errors.Is(err, fs.ErrNotExist) {
		return Model{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	f, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	additions := Model{}
	if f.Module != nil {
		additions["go-module"] = f.Module.Mod.Path
		additions["go-module-name"] = filepath.Base(f.Module.Mod.Path)
	}
	if f.Go != nil {
		additions["go-version"] = f.Go.Version
	}

	deps := make([]Dependency, 0, len(f.Require))
	for _, r := range f.Require {
		group, artifact := splitModulePath(r.Mod.Path)
		deps = append(deps, Dependency{
			GroupID:    group,
			ArtifactID: artifact,
			Version:    r.Mod.Version,
			Source:     "go.mod",
		})
	}
	additions[DependenciesKey] = deps
	return additions, nil
}

// DefaultPopulators returns the populators enabled when configuration
// does not name any.
func DefaultPopulators(fsys afero.Fs) []Populator {
	return []Populator{&MavenPopulator{Fs: fsys}, &GoModPopulator{Fs: fsys}}
}

// PopulatorsByName resolves configured populator names. Unknown names are
// an error.
func PopulatorsByName(fsys afero.Fs, names []string) ([]Populator, error) {
	if len(names) == 0 {
		return DefaultPopulators(fsys), nil
	}
	var out []Populator
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "maven":
			out = append(out, &MavenPopulator{Fs: fsys})
		case "gomod", "go":
			out = append(out, &GoModPopulator{Fs: fsys})
		case "none":
			return nil, nil
		default:
			return nil, fmt.Errorf("unknown populator %q", n)
		}
	}
	return out, nil
}

// splitModulePath maps a module path onto group/artifact: the last path
// element is the artifact, major version suffixes are skipped.
func splitModulePath(path string) (group, artifact string) {
	parts := strings.Split(path, "/")
	last := len(parts) - 1
	if last > 0 && isMajorSuffix(parts[last]) {
		last--
	}
	return strings.Join(parts[:last], "/"), parts[last]
}

func isMajorSuffix(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func fsOrOS(fsys afero.Fs) afero.Fs {
	if fsys == nil {
		return afero.NewOsFs()
	}
	return fsys
}
