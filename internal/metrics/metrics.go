package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics счётчики бизнес-операций магазина. Методы безопасны для nil-получателя,
// чтобы сервисы можно было собирать без метрик.
type Metrics struct {
	ordersPlaced   prometheus.Counter
	orderFailures  *prometheus.CounterVec
	orderRevenue   prometheus.Counter
	stockReleased  prometheus.Counter
	reviewsCreated prometheus.Counter
	paymentIntents *prometheus.CounterVec
}

// New регистрирует метрики в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Number of successfully placed orders.",
		}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_failures_total",
			Help:      "Number of rejected order placements by reason.",
		}, []string{"reason"}),
		orderRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_revenue_total",
			Help:      "Sum of placed order totals.",
		}),
		stockReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_released_units_total",
			Help:      "Units returned to stock by cancelled orders.",
		}),
		reviewsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_created_total",
			Help:      "Number of stored product reviews.",
		}),
		paymentIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intents_total",
			Help:      "Payment intent status changes.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.ordersPlaced,
		m.orderFailures,
		m.orderRevenue,
		m.stockReleased,
		m.reviewsCreated,
		m.paymentIntents,
	)
	return m
}

func (m *Metrics) OrderPlaced(total float64) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.orderRevenue.Add(total)
}

func (m *Metrics) OrderFailed(reason string) {
	if m == nil {
		return
	}
	m.orderFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) StockReleased(units int) {
	if m == nil {
		return
	}
	m.stockReleased.Add(float64(units))
}

func (m *Metrics) ReviewCreated() {
	if m == nil {
		return
	}
	m.reviewsCreated.Inc()
}

func (m *Metrics) PaymentIntent(status string) {
	if m == nil {
		return
	}
	m.paymentIntents.WithLabelValues(status).Inc()
}

// OrderFailures возвращает счётчик отказов по причине, нужен тестам и дашбордам
func (m *Metrics) OrderFailures(reason string) prometheus.Counter {
	return m.orderFailures.WithLabelValues(reason)
}

// OrdersPlaced возвращает счётчик созданных заказов
func (m *Metrics) OrdersPlaced() prometheus.Counter {
	return m.ordersPlaced
}
