package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/tyviewer/pkg/formats/formatstest"
	"github.com/Faultbox/tyviewer/pkg/rkv"
	"github.com/Faultbox/tyviewer/pkg/rkv/rkvtest"
)

func quad() []byte {
	return formatstest.MDL2{
		Name: "quad",
		Subobjects: []formatstest.Subobject{{
			Name:     "body",
			Material: "A048_Grass",
			Meshes: []formatstest.Mesh{{
				Material: "A048_Grass",
				Segments: []formatstest.Segment{{
					Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
				}},
			}},
		}},
	}.Bytes()
}

func testArchive(t *testing.T) string {
	t.Helper()
	return rkvtest.WriteFile(t, rkvtest.RKV1([]rkvtest.Entry{
		{Name: "P0001_Quad.mdl", Data: quad()},
		{Name: "P0002_Quad.mdl", Data: quad()},
		{Name: "Broken.mdl", Data: []byte("not a model")},
		{Name: "A048_Grass.dds", Data: []byte("DDS grass")},
		{Name: "readme.txt", Data: []byte("hello")},
	}, 1))
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"*.mdl", "P0001_Quad.mdl", true},
		{"*.MDL", "p0001_quad.mdl", true},
		{"p00*", "P0001_Quad.mdl", true},
		{"*.mdg", "P0001_Quad.mdl", false},
		{"quad.mdl", `data\Quad.mdl`, false},
		{"quad.mdl", "data/Quad.mdl", true},
	}
	for _, tt := range tests {
		if got := matchName(tt.pattern, tt.name); got != tt.want {
			t.Errorf("matchName(%q, %q) = %v", tt.pattern, tt.name, got)
		}
	}
}

func TestNames(t *testing.T) {
	if got := companion("act_01_ty.mdl"); got != "act_01_ty.mdg" {
		t.Errorf("companion = %s", got)
	}
	if got := modelName("Tyrock"); got != "Tyrock.mdl" {
		t.Errorf("modelName = %s", got)
	}
	if got := modelName("Tyrock.mdl"); got != "Tyrock.mdl" {
		t.Errorf("modelName kept = %s", got)
	}
}

func TestFindCommand(t *testing.T) {
	for _, name := range []string{"info", "ls", "x", "find", "models", "inspect", "export"} {
		if findCommand(name) == nil {
			t.Errorf("command %q not found", name)
		}
	}
	if findCommand("pack") != nil {
		t.Error("unknown command resolved")
	}
}

func TestUsageErrors(t *testing.T) {
	var out bytes.Buffer
	for _, c := range commands {
		if err := c.run(nil, &out); !errors.Is(err, errUsage) {
			t.Errorf("%s without arguments: err = %v, want errUsage", c.names[0], err)
		}
	}
	if err := cmdList([]string{"-bogus", "a.rkv"}, &out); !errors.Is(err, errUsage) {
		t.Errorf("unknown flag: err = %v", err)
	}
}

func TestCmdInfo(t *testing.T) {
	var out bytes.Buffer
	if err := cmdInfo([]string{testArchive(t)}, &out); err != nil {
		t.Fatalf("cmdInfo: %v", err)
	}
	for _, want := range []string{"Format:  RKV1", "Files:   5", "mdl        3", "dds        1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("info output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestCmdList(t *testing.T) {
	archive := testArchive(t)
	tests := []struct {
		args []string
		want int
	}{
		{[]string{archive}, 5},
		{[]string{archive, "*.mdl"}, 3},
		{[]string{archive, "quad"}, 2},
		{[]string{"-n", "1", archive, "*.mdl"}, 1},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if err := cmdList(tt.args, &out); err != nil {
			t.Fatalf("cmdList(%v): %v", tt.args, err)
		}
		if got := strings.Count(out.String(), "\n"); got != tt.want {
			t.Errorf("cmdList(%v) listed %d names, want %d", tt.args, got, tt.want)
		}
	}
}

func TestCmdExtract(t *testing.T) {
	archive := testArchive(t)
	dir := t.TempDir()

	var out bytes.Buffer
	if err := cmdExtract([]string{archive, "readme.txt", dir}, &out); err != nil {
		t.Fatalf("cmdExtract: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "readme.txt"))
	if err != nil || string(data) != "hello" {
		t.Errorf("extracted %q, %v", data, err)
	}

	if err := cmdExtract([]string{archive, "P000?_*.mdl", dir}, &out); err != nil {
		t.Fatalf("cmdExtract glob: %v", err)
	}
	for _, name := range []string{"P0001_Quad.mdl", "P0002_Quad.mdl"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not extracted: %v", name, err)
		}
	}

	if err := cmdExtract([]string{archive, "missing.mdl", dir}, &out); !errors.Is(err, rkv.ErrFileNotFound) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestCmdSearch(t *testing.T) {
	var out bytes.Buffer
	if err := cmdSearch([]string{testArchive(t), "GRASS"}, &out); err != nil {
		t.Fatalf("cmdSearch: %v", err)
	}
	if strings.TrimSpace(out.String()) != "A048_Grass.dds" {
		t.Errorf("search output = %q", out.String())
	}
}

func TestCmdModels(t *testing.T) {
	var out bytes.Buffer
	if err := cmdModels([]string{testArchive(t)}, &out); err != nil {
		t.Fatalf("cmdModels: %v", err)
	}
	if got := strings.Count(out.String(), "TY1"); got != 3 {
		t.Errorf("expected 3 TY1 models, got %d:\n%s", got, out.String())
	}
}

func TestCmdInspect(t *testing.T) {
	var out bytes.Buffer
	if err := cmdInspect([]string{"-dump", "-log", "error", testArchive(t), "P0001_Quad"}, &out); err != nil {
		t.Fatalf("cmdInspect: %v", err)
	}
	for _, want := range []string{"Header:     MDL2", "Subobjects: 1", "material=A048_Grass", "vertices=4"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("inspect output lacks %q:\n%s", want, out.String())
		}
	}

	if err := cmdInspect([]string{testArchive(t), "Broken.mdl"}, &out); err == nil {
		t.Error("inspecting a broken model should fail")
	}
}

func TestCmdExport(t *testing.T) {
	archive := testArchive(t)
	dir := t.TempDir()

	var out bytes.Buffer
	if err := cmdExport([]string{"-out", dir, "-log", "error", archive, "P00*"}, &out); err != nil {
		t.Fatalf("cmdExport: %v", err)
	}
	for _, name := range []string{"P0001_Quad", "P0002_Quad"} {
		if _, err := os.Stat(filepath.Join(dir, name, name+".obj")); err != nil {
			t.Errorf("%s not exported: %v", name, err)
		}
	}
	if data, err := os.ReadFile(filepath.Join(dir, "P0001_Quad", "A048_Grass.dds")); string(data) != "DDS grass" {
		t.Errorf("texture copy = %q, %v", data, err)
	}

	if err := cmdExport([]string{"-format", "gltf", "-out", dir, "-log", "error", archive, "P0001_Quad"}, &out); err != nil {
		t.Fatalf("cmdExport gltf: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "P0001_Quad", "P0001_Quad.glb")); err != nil {
		t.Errorf("glb not written: %v", err)
	}

	if err := cmdExport([]string{"-out", dir, "-log", "error", archive, "Broken"}, &out); err == nil {
		t.Error("exporting only broken models should fail")
	}
	if err := cmdExport([]string{"-format", "fbx", archive, "P0001_Quad"}, &out); err == nil {
		t.Error("unknown format accepted")
	}
}
