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

// Package worker prepares serialized plans
// received from a coordinator for local
// execution: it decodes the plan, fetches
// the storage files of the assigned
// partitions, and materializes the plan
// against the local copies.
package worker

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/SnellerInc/shardplan/logical"
	"github.com/SnellerInc/shardplan/plan"
)

// DefaultParallel is the default number
// of concurrent file fetches.
const DefaultParallel = 8

// DefaultFileTTL is the default amount of time
// a fetched file is remembered.
const DefaultFileTTL = 10 * time.Minute

// Fetcher copies storage files to local storage.
type Fetcher interface {
	// Fetch makes the storage file remote available
	// locally and returns its local path.
	Fetch(ctx context.Context, remote string) (string, error)
}

// FetcherFunc is a function that implements Fetcher.
type FetcherFunc func(ctx context.Context, remote string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, remote string) (string, error) {
	return f(ctx, remote)
}

// Worker prepares plans for execution.
// A Worker is safe for concurrent use.
type Worker struct {
	fetcher  Fetcher
	logger   logrus.FieldLogger
	parallel int
	ttl      time.Duration
	reg      prometheus.Registerer

	files   *cache.Cache
	metrics *metrics
}

// Option is an optional argument to New.
type Option func(w *Worker)

// WithLogger is an option that can be passed
// to New to have the worker log diagnostic
// information. Without a logger the worker
// writes no diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Worker) {
		w.logger = l
	}
}

// WithParallel sets the maximum number
// of concurrent fetches per plan.
func WithParallel(n int) Option {
	return func(w *Worker) {
		w.parallel = n
	}
}

// WithMetrics registers the worker metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(w *Worker) {
		w.reg = reg
	}
}

// WithFileTTL sets how long the local path of
// a fetched file is reused before the file is
// fetched again. Zero disables reuse.
func WithFileTTL(d time.Duration) Option {
	return func(w *Worker) {
		w.ttl = d
	}
}

// New constructs a Worker that fetches
// files with f.
func New(f Fetcher, opt ...Option) (*Worker, error) {
	w := &Worker{
		fetcher:  f,
		parallel: DefaultParallel,
		ttl:      DefaultFileTTL,
	}
	for i := range opt {
		opt[i](w)
	}
	if w.logger == nil {
		l := logrus.New()
		l.Out = io.Discard
		w.logger = l
	}
	if w.parallel < 1 {
		w.parallel = 1
	}
	m, err := newMetrics(w.reg)
	if err != nil {
		return nil, err
	}
	w.metrics = m
	if w.ttl > 0 {
		w.files = cache.New(w.ttl, 2*w.ttl)
	}
	return w, nil
}

// Prepared is a plan ready for execution.
type Prepared struct {
	Plan *plan.SerializedPlan
	// Logical is the plan bound to local files.
	Logical logical.Plan
	// Files maps storage file names
	// to local paths.
	Files map[string]string
	// DataQuery is set when the plan
	// reads table data.
	DataQuery bool
}

// Prepare decodes a plan produced by plan.Marshal,
// fetches every file of its assigned partitions,
// and binds the plan to the local copies.
func (w *Worker) Prepare(ctx context.Context, buf []byte) (*Prepared, error) {
	start := time.Now()
	sp, err := plan.Unmarshal(buf)
	if err != nil {
		w.metrics.failures.WithLabelValues("decode").Inc()
		return nil, errors.Wrap(err, "decoding plan")
	}
	log := w.logger.WithFields(logrus.Fields{
		"plan":       sp.ID,
		"partitions": sp.Partitions(),
	})
	files, err := w.fetch(ctx, log, sp.FilesToDownload())
	if err != nil {
		w.metrics.failures.WithLabelValues("fetch").Inc()
		log.WithError(err).Error("fetching files")
		return nil, err
	}
	lp, err := sp.LogicalPlan(files)
	if err != nil {
		w.metrics.failures.WithLabelValues("materialize").Inc()
		log.WithError(err).Error("materializing plan")
		return nil, errors.Wrapf(err, "plan %s", sp.ID)
	}
	p := &Prepared{
		Plan:      sp,
		Logical:   lp,
		Files:     files,
		DataQuery: plan.IsDataSelectQuery(lp),
	}
	w.metrics.prepared.Inc()
	log.WithFields(logrus.Fields{
		"files":   len(files),
		"data":    p.DataQuery,
		"elapsed": time.Since(start),
	}).Debug("prepared plan")
	return p, nil
}

// fetch returns the local path of every file
// in remote. Each distinct file is fetched once.
func (w *Worker) fetch(ctx context.Context, log logrus.FieldLogger, remote []string) (map[string]string, error) {
	out := make(map[string]string, len(remote))
	var todo []string
	for _, name := range remote {
		if _, ok := out[name]; ok {
			continue
		}
		if path, ok := w.cached(name); ok {
			out[name] = path
			w.metrics.reused.Inc()
			continue
		}
		out[name] = ""
		todo = append(todo, name)
	}
	if len(todo) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallel)
	for _, name := range todo {
		name := name
		g.Go(func() error {
			path, err := w.fetcher.Fetch(ctx, name)
			if err != nil {
				return errors.Wrapf(err, "fetching %q", name)
			}
			log.WithField("file", name).Trace("fetched")
			w.metrics.fetched.Inc()
			if w.files != nil {
				w.files.SetDefault(name, path)
			}
			mu.Lock()
			out[name] = path
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (w *Worker) cached(remote string) (string, bool) {
	if w.files == nil {
		return "", false
	}
	v, ok := w.files.Get(remote)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Forget drops the remembered local
// path of a storage file, if any.
func (w *Worker) Forget(remote string) {
	if w.files != nil {
		w.files.Delete(remote)
	}
}
