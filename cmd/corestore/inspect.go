package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/corestore"
	"github.com/hupe1980/corestore/model"
)

var errCoreNotFound = errors.New("core not found")

// discoveryKeyArg parses the single hex discovery key argument.
func discoveryKeyArg(dk *model.DiscoveryKey) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("requires one argument with a hex discovery key")
		}
		var err error
		*dk, err = model.ParseDiscoveryKey(args[0])
		return err
	}
}

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list the discovery keys of all cores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStorage(openReadOnly)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			var dks []string
			for dk, err := range s.List(cmd.Context()) {
				if err != nil {
					return err
				}
				dks = append(dks, dk.String())
			}

			return a.print(cmd.OutOrStdout(), dks, func(w io.Writer) {
				for _, dk := range dks {
					fmt.Fprintln(w, dk)
				}
			})
		},
	}
}

type storageView struct {
	Initialized bool   `json:"initialized"`
	Cores       uint64 `json:"cores"`
	Free        uint64 `json:"free"`
	Default     string `json:"default,omitempty"`
}

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "show the storage allocation counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStorage(openReadOnly)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			info, ok, err := s.Info(cmd.Context())
			if err != nil {
				return err
			}
			view := storageView{Initialized: ok, Cores: info.Total, Free: info.Free}

			def := s.Default()
			if _, found, err := def.Open(cmd.Context()); err != nil {
				return err
			} else if found {
				if dk, ok := def.DiscoveryKey(); ok {
					view.Default = dk.String()
				}
			}

			return a.print(cmd.OutOrStdout(), view, func(w io.Writer) {
				fmt.Fprintf(w, "initialized: %t\ncores:       %d\nfree:        %d\n", view.Initialized, view.Cores, view.Free)
				if view.Default != "" {
					fmt.Fprintf(w, "default:     %s\n", view.Default)
				}
			})
		},
	}
}

type coreView struct {
	DiscoveryKey     string  `json:"discovery_key"`
	CorePointer      uint64  `json:"core_pointer"`
	DataPointer      uint64  `json:"data_pointer"`
	Key              string  `json:"key"`
	Manifest         bool    `json:"manifest"`
	Fork             uint64  `json:"fork"`
	Length           uint64  `json:"length"`
	ByteLength       uint64  `json:"byte_length"`
	Blocks           uint64  `json:"blocks"`
	LastTreeNode     *uint64 `json:"last_tree_node,omitempty"`
	ContiguousLength uint64  `json:"contiguous_length"`
	Dependency       string  `json:"dependency,omitempty"`
}

func (a *app) coreCommand() *cobra.Command {
	var dk model.DiscoveryKey

	return &cobra.Command{
		Use:   "core <discovery-key>",
		Short: "show the records of one core",
		Args:  discoveryKeyArg(&dk),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := a.openStorage(openReadOnly)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			c := s.Get(dk)
			info, ok, err := c.Open(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", errCoreNotFound, dk)
			}

			view, err := describeCore(ctx, c, dk, info)
			if err != nil {
				return err
			}

			return a.print(cmd.OutOrStdout(), view, func(w io.Writer) {
				fmt.Fprintf(w, "discovery key:     %s\n", view.DiscoveryKey)
				fmt.Fprintf(w, "pointer:           %d:%d\n", view.CorePointer, view.DataPointer)
				fmt.Fprintf(w, "key:               %s\n", view.Key)
				fmt.Fprintf(w, "manifest:          %t\n", view.Manifest)
				fmt.Fprintf(w, "head:              fork=%d length=%d bytes=%d\n", view.Fork, view.Length, view.ByteLength)
				fmt.Fprintf(w, "blocks:            %d\n", view.Blocks)
				fmt.Fprintf(w, "contiguous length: %d\n", view.ContiguousLength)
				if view.LastTreeNode != nil {
					fmt.Fprintf(w, "last tree node:    %d\n", *view.LastTreeNode)
				}
				if view.Dependency != "" {
					fmt.Fprintf(w, "dependency:        %s\n", view.Dependency)
				}
			})
		},
	}
}

func describeCore(ctx context.Context, c *corestore.Core, dk model.DiscoveryKey, info *corestore.CoreInfo) (coreView, error) {
	view := coreView{DiscoveryKey: dk.String()}

	if ptr, ok := c.Pointer(); ok {
		view.CorePointer, view.DataPointer = ptr.Core, ptr.Data
	}
	if info.Auth != nil {
		view.Key = hex.EncodeToString(info.Auth.Key)
		view.Manifest = info.Auth.Manifest != nil
	}
	if info.Head != nil {
		view.Fork, view.Length, view.ByteLength = info.Head.Fork, info.Head.Length, info.Head.ByteLength
	}

	blocks, err := c.BlockSet(ctx)
	if err != nil {
		return view, err
	}
	view.Blocks = blocks.GetCardinality()

	node, ok, err := c.PeekLastTreeNode(ctx)
	if err != nil {
		return view, err
	}
	if ok {
		view.LastTreeNode = &node.Index
	}

	hints, ok, err := c.Hints(ctx)
	if err != nil {
		return view, err
	}
	if ok {
		view.ContiguousLength = hints.ContiguousLength
	}

	dep, ok, err := c.Dependency(ctx)
	if err != nil {
		return view, err
	}
	if ok {
		view.Dependency = fmt.Sprintf("data=%d length=%d", dep.DataPointer, dep.Length)
	}
	return view, nil
}

type treeNodeView struct {
	Index uint64 `json:"index"`
	Size  uint64 `json:"size"`
	Hash  string `json:"hash"`
}

func (a *app) treeCommand() *cobra.Command {
	var (
		dk      model.DiscoveryKey
		gte     uint64
		lt      uint64
		limit   int
		reverse bool
	)

	cmd := &cobra.Command{
		Use:   "tree <discovery-key>",
		Short: "dump the merkle tree nodes of one core",
		Args:  discoveryKeyArg(&dk),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := a.openStorage(openReadOnly)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			c := s.Get(dk)
			if _, ok, err := c.Open(ctx); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("%w: %s", errCoreNotFound, dk)
			}

			opts := []corestore.RangeOption{corestore.Gte(gte)}
			if cmd.Flags().Changed("lt") {
				opts = append(opts, corestore.Lt(lt))
			}
			if limit > 0 {
				opts = append(opts, corestore.Limit(limit))
			}
			if reverse {
				opts = append(opts, corestore.Reverse())
			}

			var nodes []treeNodeView
			for node, err := range c.TreeNodeStream(ctx, opts...) {
				if err != nil {
					return err
				}
				nodes = append(nodes, treeNodeView{
					Index: node.Index,
					Size:  node.Size,
					Hash:  hex.EncodeToString(node.Hash[:]),
				})
			}

			return a.print(cmd.OutOrStdout(), nodes, func(w io.Writer) {
				for _, n := range nodes {
					fmt.Fprintf(w, "%d\t%d\t%s\n", n.Index, n.Size, n.Hash)
				}
			})
		},
	}

	cmd.Flags().Uint64Var(&gte, "gte", 0, "first index")
	cmd.Flags().Uint64Var(&lt, "lt", 0, "stop before this index")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of nodes")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "iterate from the highest index")
	return cmd
}

func (a *app) clearCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "delete every record in the storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("clear deletes all cores; pass --yes to confirm")
			}

			s, err := a.openStorage(openExisting)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if err := s.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared", a.cfg.Dir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
