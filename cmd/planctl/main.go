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

// Command planctl inspects and specializes
// encoded query plans.
//
// Usage:
//
//	planctl describe FILE
//	planctl files FILE [--partitions 1,2,3]
//	planctl classify FILE
//	planctl bind FILE --assignment worker.yaml
//	planctl shard FILE -n N --out DIR
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/SnellerInc/shardplan/compr"
	"github.com/SnellerInc/shardplan/plan"
)

type app struct {
	logger      *logrus.Logger
	logLevel    string
	compression string
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{logger: logrus.New()}
	a.logger.Out = stderr
	root := &cobra.Command{
		Use:           "planctl",
		Short:         "Inspect and specialize encoded query plans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(a.logLevel)
			if err != nil {
				return err
			}
			a.logger.SetLevel(lvl)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	a.globalFlags(root.PersistentFlags())

	root.AddCommand(
		a.describeCommand(),
		a.filesCommand(),
		a.classifyCommand(),
		a.bindCommand(),
		a.shardCommand(),
	)
	return root
}

func (a *app) globalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&a.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	fs.StringVar(&a.compression, "compression", "", "compress written plans ("+strings.Join(compr.Names(), ", ")+")")
}

func (a *app) readPlan(file string) (*plan.SerializedPlan, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	sp, err := plan.Unmarshal(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", file)
	}
	a.logger.WithFields(logrus.Fields{
		"file":  file,
		"plan":  sp.ID,
		"bytes": len(buf),
	}).Debug("read plan")
	return sp, nil
}

func (a *app) marshalOptions() []plan.MarshalOption {
	if a.compression == "" {
		return nil
	}
	return []plan.MarshalOption{plan.WithCompression(a.compression)}
}

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "planctl:", err)
		os.Exit(1)
	}
}
