// Package project provides georeferencing project file handling and persistence.
package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File represents a georeferencing project file (.georef.yaml).
type File struct {
	Version     int       `yaml:"version"`
	Name        string    `yaml:"name"`
	Created     time.Time `yaml:"created"`
	Modified    time.Time `yaml:"modified"`
	Description string    `yaml:"description,omitempty"`

	// Layer paths (relative to project file)
	ReferencePath string `yaml:"reference"`
	InputPath     string `yaml:"input"`
	OutputPath    string `yaml:"output,omitempty"`
	ReportPath    string `yaml:"report,omitempty"`
	PreviewPath   string `yaml:"preview,omitempty"`

	Settings Settings `yaml:"settings"`

	// Last fit
	Fitted bool    `yaml:"fitted"`
	RMSE   float64 `yaml:"rmse,omitempty"`
	RunID  string  `yaml:"run_id,omitempty"`
}

// Settings holds the transformation choice for the project.
type Settings struct {
	Model  string `yaml:"model"`
	Degree int    `yaml:"degree"`
}

// New creates a new project file with default settings.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:  1,
		Name:     name,
		Created:  now,
		Modified: now,
		Settings: Settings{
			Model:  "helmert",
			Degree: 1,
		},
	}
}

// Load loads a project from a YAML file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := yaml.Unmarshal(data, &proj); err != nil {
		return nil, err
	}

	return &proj, nil
}

// Open loads the project at path. When the file does not exist a new
// project named after it is returned, pointing at the given reference and
// input layers; created reports that case. Nothing is written.
func Open(path, referencePath, inputPath string) (proj *File, created bool, err error) {
	proj, err = Load(path)
	if err == nil {
		return proj, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	proj = New(filepath.Base(baseName(path)))
	if referencePath != "" {
		proj.SetReference(path, referencePath)
	}
	if inputPath != "" {
		proj.SetInput(path, inputPath)
	}
	return proj, true, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SetReference sets the reference layer path (relative to project).
func (p *File) SetReference(projectPath, layerPath string) {
	p.ReferencePath = relativeTo(projectPath, layerPath)
	p.Modified = time.Now()
}

// SetInput sets the layer-to-transform path (relative to project).
func (p *File) SetInput(projectPath, layerPath string) {
	p.InputPath = relativeTo(projectPath, layerPath)
	p.Modified = time.Now()
}

// GetReferencePath returns the absolute path to the reference layer.
func (p *File) GetReferencePath(projectPath string) string {
	return resolve(projectPath, p.ReferencePath)
}

// GetInputPath returns the absolute path to the layer to transform.
func (p *File) GetInputPath(projectPath string) string {
	return resolve(projectPath, p.InputPath)
}

// GetOutputPath returns the absolute path to the transformed layer.
func (p *File) GetOutputPath(projectPath string) string {
	if p.OutputPath == "" {
		// Default: project_name_transformed.geojson
		return baseName(projectPath) + "_transformed.geojson"
	}
	return resolve(projectPath, p.OutputPath)
}

// GetReportPath returns the absolute path to the HTML report, or "".
func (p *File) GetReportPath(projectPath string) string {
	return resolve(projectPath, p.ReportPath)
}

// GetPreviewPath returns the absolute path to the PNG preview, or "".
func (p *File) GetPreviewPath(projectPath string) string {
	return resolve(projectPath, p.PreviewPath)
}

func relativeTo(projectPath, path string) string {
	rel, err := filepath.Rel(filepath.Dir(projectPath), path)
	if err != nil {
		return path
	}
	return rel
}

func resolve(projectPath, path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(projectPath), path)
}

// baseName strips the extension, including a compound .georef.yaml.
func baseName(projectPath string) string {
	base := strings.TrimSuffix(projectPath, ".georef.yaml")
	if base == projectPath {
		base = projectPath[:len(projectPath)-len(filepath.Ext(projectPath))]
	}
	return base
}
