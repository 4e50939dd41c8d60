// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SesionesAbiertas = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "sesiones_abiertas_total",
		Help:      "Register sessions opened.",
	})

	SesionesCerradas = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "sesiones_cerradas_total",
		Help:      "Register sessions closed, by variance classification.",
	}, []string{"clasificacion"})

	VentasRegistradas = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "ventas_registradas_total",
		Help:      "Sales settled.",
	})

	VentasRechazadas = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "ventas_rechazadas_total",
		Help:      "Sale settlements rejected, by error code.",
	}, []string{"code"})

	MovimientosStock = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "movimientos_stock_total",
		Help:      "Committed stock ledger entries, by reason code.",
	}, []string{"motivo"})

	StockNegativo = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "stock_negativo_total",
		Help:      "Ledger posts that left a balance below zero.",
	})

	EventosFallidos = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "eventos_fallidos_total",
		Help:      "Realtime notifications that could not be delivered.",
	}, []string{"tipo"})
)
