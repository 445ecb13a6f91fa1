package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// mustRegister регистрирует collector; если имя уже занято коллектором
// того же типа, возвращает существующий.
func mustRegister[C prometheus.Collector](registerer prometheus.Registerer, name string, collector C) C {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}

	var dup prometheus.AlreadyRegisteredError
	if !errors.As(err, &dup) {
		panic(fmt.Sprintf("metrics: register %s: %v", name, err))
	}
	existing, ok := dup.ExistingCollector.(C)
	if !ok {
		panic(fmt.Sprintf("metrics: %s already registered as %T", name, dup.ExistingCollector))
	}
	return existing
}

func registerCounter(r prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	return mustRegister(r, opts.Name, prometheus.NewCounter(opts))
}

func registerCounterVec(r prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	return mustRegister(r, opts.Name, prometheus.NewCounterVec(opts, labels))
}

func registerGauge(r prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	return mustRegister(r, opts.Name, prometheus.NewGauge(opts))
}

func registerHistogramVec(r prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	return mustRegister(r, opts.Name, prometheus.NewHistogramVec(opts, labels))
}
