// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tflucke/tsnapshot/internal/compress"
	"github.com/tflucke/tsnapshot/internal/pathutil"
	"github.com/tflucke/tsnapshot/internal/sink"
)

// Mode tags the space strategy a Node applies.
type Mode int

const (
	ModeBasic Mode = iota
	ModeCompressed
	ModeHardLinked
)

// Node is one directory-policy tree element: a subpath, its filters, its
// ordered child nodes (dispatched by relative subpath), and — for
// non-Basic nodes — the strategy-specific settings.
type Node struct {
	// Subpath is this node's path relative to the directory its parent
	// node was entered at; it may span more than one component. Backup
	// does not read the root node's Subpath: the root is addressed by the
	// caller-supplied src path (the engine passes the root's Subpath).
	Subpath    string
	Filters    []Filter
	Subconfigs []*Node
	Mode       Mode

	// ModeCompressed
	Algorithm compress.Algorithm

	// ModeHardLinked
	MaxLinkCount uint64
	Detector     sink.ChangeDetector

	Log *slog.Logger
}

func (n *Node) logger() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}

// GetSubconfig returns the child node whose Subpath equals path's
// position relative to nodeRoot (the directory this node itself was
// entered at), or nil. A child's Subpath may span more than one path
// component (e.g. "a/b"), letting a config skip past intermediate
// directories without declaring a node for each one.
func (n *Node) GetSubconfig(nodeRoot, path string) *Node {
	rel, err := filepath.Rel(nodeRoot, path)
	if err != nil {
		return nil
	}
	for _, child := range n.Subconfigs {
		if filepath.Clean(child.Subpath) == rel {
			return child
		}
	}
	return nil
}

// Backup walks src (the directory n is entered at, against which child
// Subpaths are resolved) writing entries into active, switching into child policies and
// nested sinks as the tree dictates. ref is the reference snapshot's root
// directory, if one exists (used by ModeHardLinked nodes further down the
// tree).
func (n *Node) Backup(src, dstRoot string, active sink.Sink, ref string) error {
	switch n.Mode {
	case ModeCompressed:
		return n.backupCompressed(src, dstRoot, ref)
	case ModeHardLinked:
		return n.backupHardLinked(src, dstRoot, ref)
	default:
		return n.backupBasic(src, src, dstRoot, active, ref)
	}
}

// backupBasic walks current, a descendant of nodeRoot (the directory n
// itself was entered at), dispatching to a child policy when current's
// position relative to nodeRoot matches one of n's Subconfigs.
func (n *Node) backupBasic(current, nodeRoot, dstRoot string, active sink.Sink, ref string) error {
	info, err := os.Lstat(current)
	if err != nil {
		return err
	}

	for _, f := range n.Filters {
		if f.Match(current, info) {
			n.logger().Debug("skipping entry, matched filter", "path", current)
			return nil
		}
	}

	if child := n.GetSubconfig(nodeRoot, current); child != nil {
		n.logger().Debug("switching policy", "path", current, "child", child.Subpath)
		return child.Backup(current, dstRoot, active, ref)
	}

	if err := active.AppendFile(current); err != nil {
		return fmt.Errorf("append %s: %w", current, err)
	}

	if info.IsDir() {
		entries, err := os.ReadDir(current)
		if err != nil {
			return fmt.Errorf("read dir %s: %w", current, err)
		}
		for _, e := range entries {
			if err := n.backupBasic(filepath.Join(current, e.Name()), nodeRoot, dstRoot, active, ref); err != nil {
				return err
			}
		}
	}

	return nil
}

func (n *Node) backupCompressed(src, dstRoot string, ref string) error {
	relDir := filepath.Dir(pathutil.Relative(src))
	base := filepath.Base(src)
	archiveName := "tsnapshot-" + base + n.Algorithm.Extension()

	outDir := filepath.Join(dstRoot, relDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create archive dir %s: %w", outDir, err)
	}
	outPath := filepath.Join(outDir, archiveName)

	outFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", outPath, err)
	}
	defer outFile.Close()

	compressor, err := n.Algorithm.NewWriter(outFile, strings.TrimSuffix(base, filepath.Ext(base)))
	if err != nil {
		return fmt.Errorf("init compressor for %s: %w", outPath, err)
	}

	tarSink := sink.NewTarSink(compressor, n.logger())

	basic := &Node{
		Subpath:    n.Subpath,
		Filters:    n.Filters,
		Subconfigs: n.Subconfigs,
		Mode:       ModeBasic,
		Log:        n.Log,
	}
	if err := basic.Backup(src, dstRoot, tarSink, ref); err != nil {
		_ = tarSink.Close()
		_ = compressor.Close()
		return err
	}

	if err := tarSink.Close(); err != nil {
		return err
	}
	return compressor.Close()
}

func (n *Node) backupHardLinked(src, dstRoot string, ref string) error {
	basic := &Node{
		Subpath:    n.Subpath,
		Filters:    n.Filters,
		Subconfigs: n.Subconfigs,
		Mode:       ModeBasic,
		Log:        n.Log,
	}

	if ref == "" {
		n.logger().Debug("no reference snapshot, falling back to copy", "path", src)
		copySink := sink.NewCopySink(dstRoot)
		defer copySink.Close()
		return basic.Backup(src, dstRoot, copySink, ref)
	}

	detector := n.Detector
	if detector == nil {
		detector = sink.TimestampDetector{}
	}
	linkSink := sink.NewHardLinkSink(dstRoot, ref, n.MaxLinkCount, detector)
	defer linkSink.Close()
	return basic.Backup(src, dstRoot, linkSink, ref)
}

// AllBasic reports whether n and every transitive Subconfig is ModeBasic —
// the constraint a Compressed node's subtree must satisfy.
func (n *Node) AllBasic() bool {
	if n.Mode != ModeBasic {
		return false
	}
	for _, c := range n.Subconfigs {
		if !c.AllBasic() {
			return false
		}
	}
	return true
}
