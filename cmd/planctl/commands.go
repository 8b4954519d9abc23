// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SnellerInc/shardplan/logical"
	"github.com/SnellerInc/shardplan/metastore"
	"github.com/SnellerInc/shardplan/plan"
)

func (a *app) describeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe FILE",
		Short: "Print the id, fingerprint, partitions and tree of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := a.readPlan(args[0])
			if err != nil {
				return err
			}
			fp, err := sp.Fingerprint()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fingerprint %s\n", hex.EncodeToString(fp[:]))
			fmt.Fprintf(out, "indexes %d\n", len(sp.IndexSnapshots()))
			fmt.Fprint(out, sp.String())
			return nil
		},
	}
}

func (a *app) filesCommand() *cobra.Command {
	var parts []uint
	cmd := &cobra.Command{
		Use:   "files FILE",
		Short: "List the storage files a plan reads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := a.readPlan(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("partitions") {
				ids := make([]uint64, len(parts))
				for i := range parts {
					ids[i] = uint64(parts[i])
				}
				sp = sp.WithPartitions(metastore.Restrict(ids...))
			}
			for _, f := range sp.FilesToDownload() {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	cmd.Flags().UintSliceVar(&parts, "partitions", nil, "restrict the plan to these partition ids")
	return cmd
}

func (a *app) classifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify FILE",
		Short: "Print whether a plan reads table data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := a.readPlan(args[0])
			if err != nil {
				return err
			}
			// bound to storage names
			lp, err := plan.Materialize(sp.Root(), nil, metastore.Unrestricted())
			if err != nil {
				return err
			}
			if plan.IsDataSelectQuery(lp) {
				fmt.Fprintln(cmd.OutOrStdout(), "data")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "catalog")
			}
			return nil
		},
	}
}

func (a *app) bindCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "bind FILE",
		Short: "Bind a plan to the local files of a worker assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := a.readPlan(args[0])
			if err != nil {
				return err
			}
			asn, err := loadAssignment(file)
			if err != nil {
				return err
			}
			sp = sp.WithPartitions(asn.partitionSet())
			lp, err := sp.LogicalPlan(asn.Files)
			if err != nil {
				return err
			}
			a.logger.WithFields(logrus.Fields{
				"plan":       sp.ID,
				"partitions": sp.Partitions(),
				"files":      len(asn.Files),
			}).Info("bound plan")
			fmt.Fprint(cmd.OutOrStdout(), logical.ToString(lp))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "assignment", "", "YAML worker assignment")
	cobra.CheckErr(cmd.MarkFlagRequired("assignment"))
	return cmd
}

func (a *app) shardCommand() *cobra.Command {
	var (
		n   int
		dir string
	)
	cmd := &cobra.Command{
		Use:   "shard FILE",
		Short: "Split a plan into per-worker plans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 1 {
				return errors.Errorf("invalid shard count %d", n)
			}
			sp, err := a.readPlan(args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			for i, s := range sp.Shard(n) {
				buf, err := plan.Marshal(s, a.marshalOptions()...)
				if err != nil {
					return err
				}
				name := filepath.Join(dir, fmt.Sprintf("%s.%d.plan", sp.ID, i))
				if err := os.WriteFile(name, buf, 0o644); err != nil {
					return err
				}
				a.logger.WithFields(logrus.Fields{
					"file":       name,
					"partitions": s.Partitions(),
				}).Debug("wrote shard")
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 1, "number of workers")
	cmd.Flags().StringVar(&dir, "out", ".", "output directory")
	return cmd
}
