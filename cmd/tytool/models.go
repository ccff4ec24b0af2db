package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tyviewer/internal/assets"
	"github.com/Faultbox/tyviewer/internal/export"
	"github.com/Faultbox/tyviewer/internal/logger"
	"github.com/Faultbox/tyviewer/pkg/formats"
	"github.com/Faultbox/tyviewer/pkg/rkv"
)

var dumpConfig = &spew.ConfigState{
	Indent:                  "  ",
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	MaxDepth:                4,
}

// initLogging routes decoder diagnostics to stderr at the given level.
func initLogging(level string) error {
	if err := logger.Init(level, ""); err != nil {
		return err
	}
	formats.SetLogger(logger.Named("formats"))
	export.SetLogger(logger.Named("export"))
	return nil
}

// mount opens an archive in a content manager. RKV1 archives go to the TY1
// slot and RKV2 archives to the TY2 slot.
func mount(archivePath string) (*assets.Manager, assets.Slot, error) {
	archive, err := openArchive(archivePath)
	if err != nil {
		return nil, 0, err
	}
	slot := assets.SlotTY1
	if archive.Version() == rkv.VersionRKV2 {
		slot = assets.SlotTY2
	}

	mgr := assets.NewManager(logger.Named("assets"))
	if err := mgr.Mount(slot, archivePath); err != nil {
		return nil, 0, err
	}
	if err := mgr.SetActive(slot); err != nil {
		return nil, 0, err
	}
	return mgr, slot, nil
}

// companion returns the geometry file that pairs with a TY2 model header.
func companion(name string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ".mdg"
}

// modelName adds the .mdl extension when a name has none.
func modelName(name string) string {
	if path.Ext(name) == "" {
		return name + ".mdl"
	}
	return name
}

func cmdModels(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}
	mgr, slot, err := mount(fs.Arg(0))
	if err != nil {
		return err
	}
	defer mgr.Close()
	archive, _ := mgr.Archive(slot)

	names := mgr.ModelList(slot)
	for _, name := range names {
		gen := "TY1"
		if archive.Contains(companion(name)) {
			gen = "TY2"
		}
		f, _ := archive.File(name)
		fmt.Fprintf(out, "%-40s %s %8d\n", name, gen, f.Size)
	}
	fmt.Fprintf(os.Stderr, "\n(%d models)\n", len(names))
	return nil
}

func cmdInspect(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	dump := fs.Bool("dump", false, "dump decoded structures")
	level := fs.String("log", "warn", "decoder log level")
	if err := parseFlags(fs, args, 2); err != nil {
		return err
	}
	if err := initLogging(*level); err != nil {
		return err
	}
	defer logger.Sync()

	mgr, slot, err := mount(fs.Arg(0))
	if err != nil {
		return err
	}
	defer mgr.Close()

	name := modelName(fs.Arg(1))
	data, err := mgr.Load(slot, name)
	if err != nil {
		return err
	}

	archive, _ := mgr.Archive(slot)
	mdgName := companion(name)
	ty2 := archive.Contains(mdgName)

	var mdl *formats.MDL
	if ty2 {
		mdl, err = formats.ParseTY2(data)
		if err != nil {
			mdl, err = formats.ParseMDL(data)
		}
	} else {
		mdl, err = formats.ParseMDL(data)
	}
	if err != nil {
		return errors.Wrapf(err, "decoding %s", name)
	}
	printHeader(out, name, len(data), mdl)

	if ty2 {
		geometry, err := mgr.Load(slot, mdgName)
		if err != nil {
			return err
		}
		var mdg *formats.MDG
		if mdl.IsMDL3() {
			mdg, err = formats.ParseMDGWithMetadata(geometry, mdl.Meta, data)
		} else {
			mdg, err = formats.ParseMDG(geometry)
		}
		if err != nil {
			return errors.Wrapf(err, "decoding %s", mdgName)
		}
		printGeometry(out, mdgName, len(geometry), mdl, mdg)
	}

	if *dump {
		fmt.Fprintln(out)
		if mdl.Meta != nil {
			dumpConfig.Fdump(out, mdl.Meta)
		}
		dumpConfig.Fdump(out, mdl.Header, mdl.Colliders, mdl.Bones)
	}
	return nil
}

func printHeader(out io.Writer, name string, size int, mdl *formats.MDL) {
	fmt.Fprintf(out, "Model:      %s (%d bytes)\n", name, size)
	if mdl.Name != "" {
		fmt.Fprintf(out, "Name:       %s\n", mdl.Name)
	}
	kind := "MDL2"
	if mdl.IsMDL3() {
		kind = "MDL3"
	}
	fmt.Fprintf(out, "Header:     %s\n", kind)
	fmt.Fprintf(out, "Bounds:     corner %v size %v\n", mdl.Bounds.Position, mdl.Bounds.Size)
	fmt.Fprintf(out, "Subobjects: %d\n", len(mdl.Subobjects))
	for i, sub := range mdl.Subobjects {
		vertices := 0
		for _, mesh := range sub.Meshes {
			vertices += mesh.VertexCount()
		}
		fmt.Fprintf(out, "  [%2d] %-24s material=%-20s meshes=%d vertices=%d\n",
			i, sub.Name, sub.Material, len(sub.Meshes), vertices)
	}
	fmt.Fprintf(out, "Colliders:  %d\n", len(mdl.Colliders))
	fmt.Fprintf(out, "Bones:      %d\n", len(mdl.Bones))
	if mdl.Meta != nil {
		fmt.Fprintf(out, "Textures:   %s\n", strings.Join(mdl.Meta.TextureNames, ", "))
	}
}

func printGeometry(out io.Writer, name string, size int, mdl *formats.MDL, mdg *formats.MDG) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Geometry:   %s (%d bytes, %s layout)\n", name, size, mdg.Format)
	fmt.Fprintf(out, "Meshes:     %d\n", len(mdg.Meshes))
	for i, mesh := range mdg.Meshes {
		texture := ""
		if mdl.Meta != nil {
			texture = mdl.Meta.TextureName(mesh.TextureIndex)
		}
		fmt.Fprintf(out, "  [%2d] texture=%-20s component=%-3d vertices=%-5d strips=%d\n",
			i, texture, mesh.ComponentIndex, len(mesh.Vertices), len(mesh.StripVertexCounts))
	}
}

func cmdExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", "obj", "export format (obj or gltf)")
	outDir := fs.String("out", "export", "output directory")
	level := fs.String("log", "warn", "decoder log level")
	if err := parseFlags(fs, args, 2); err != nil {
		return err
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}
	if err := initLogging(*level); err != nil {
		return err
	}
	defer logger.Sync()

	mgr, slot, err := mount(fs.Arg(0))
	if err != nil {
		return err
	}
	defer mgr.Close()

	target := fs.Arg(1)
	names := []string{modelName(target)}
	if isGlob(target) {
		names = names[:0]
		for _, name := range mgr.ModelList(slot) {
			if matchName(target, name) {
				names = append(names, name)
			}
		}
	}

	exported := 0
	for _, name := range names {
		m, err := mgr.LoadModel(context.Background(), slot, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		dst, err := export.Export(f, m, name, mgr.Textures(slot), *outDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting %s: %v\n", name, err)
			continue
		}
		logger.Debug("exported model", zap.String("model", name), zap.String("path", dst),
			zap.Int("meshes", len(m.Meshes)), zap.Int("triangles", m.TriangleCount()))
		fmt.Fprintf(out, "Exported: %s\n", dst)
		exported++
	}

	fmt.Fprintf(os.Stderr, "\nExported %d of %d models\n", exported, len(names))
	if exported == 0 {
		return errors.Errorf("no model exported from %s", fs.Arg(0))
	}
	return nil
}
