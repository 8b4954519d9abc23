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

package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	prepared prometheus.Counter
	fetched  prometheus.Counter
	reused   prometheus.Counter
	failures *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		prepared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shardplan",
			Subsystem: "worker",
			Name:      "plans_prepared_total",
			Help:      "Plans bound to local files.",
		}),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shardplan",
			Subsystem: "worker",
			Name:      "files_fetched_total",
			Help:      "Storage files fetched.",
		}),
		reused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shardplan",
			Subsystem: "worker",
			Name:      "files_reused_total",
			Help:      "Storage files served from earlier fetches.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardplan",
			Subsystem: "worker",
			Name:      "failures_total",
			Help:      "Plans that could not be prepared, by stage.",
		}, []string{"stage"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.prepared, m.fetched, m.reused, m.failures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
