package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pdv-service/internal/eventbus"
	"pdv-service/internal/models"
	"pdv-service/internal/store"
	"pdv-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	dashboardCacheKey = "dashboard:snapshot"
	dateLayout        = "2006-01-02"
	trailingDays      = 30
	reportTopLimit    = 10
	maxReportDays     = 731
)

// Trend directions
const (
	TrendUp      = "up"
	TrendDown    = "down"
	TrendNeutral = "neutral"
)

// SnapshotCache stores computed dashboard snapshots. *redisclient.Client implements it.
type SnapshotCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// PeriodSummary is the sales value and order count of a period
type PeriodSummary struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Trend compares a period with the one before it
type Trend struct {
	Current    decimal.Decimal `json:"current"`
	Previous   decimal.Decimal `json:"previous"`
	Percentage float64         `json:"percentage"`
	Direction  string          `json:"direction"`
}

// ProductSales ranks a product by units sold and revenue
type ProductSales struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// DailySales is one point of a per-day series
type DailySales struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// PaymentBreakdown aggregates orders paid with one method
type PaymentBreakdown struct {
	Method models.PaymentMethod `json:"method"`
	Count  int                  `json:"count"`
	Total  decimal.Decimal      `json:"total"`
}

// DashboardSnapshot is the admin home screen view
type DashboardSnapshot struct {
	Today        PeriodSummary  `json:"today"`
	Week         PeriodSummary  `json:"week"`
	Month        PeriodSummary  `json:"month"`
	WeekTrend    Trend          `json:"weekTrend"`
	MonthTrend   Trend          `json:"monthTrend"`
	TopProducts  []ProductSales `json:"topProducts"`
	RecentOrders []models.Order `json:"recentOrders"`
	DailySales   []DailySales   `json:"dailySales"`
	GeneratedAt  time.Time      `json:"generatedAt"`
	Degraded     bool           `json:"degraded"`
	Error        string         `json:"error,omitempty"`
}

// ReportRequest asks for sales between two calendar dates, both inclusive
type ReportRequest struct {
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
	Period    string `json:"period"`
}

// SalesReport aggregates sales over a date range
type SalesReport struct {
	StartDate         string             `json:"startDate"`
	EndDate           string             `json:"endDate"`
	Period            string             `json:"period"`
	TotalSales        decimal.Decimal    `json:"totalSales"`
	OrderCount        int                `json:"orderCount"`
	AverageOrderValue decimal.Decimal    `json:"averageOrderValue"`
	DailySales        []DailySales       `json:"dailySales"`
	PaymentMethods    []PaymentBreakdown `json:"paymentMethods"`
	TopByQuantity     []ProductSales     `json:"topProductsByQuantity"`
	TopByRevenue      []ProductSales     `json:"topProductsByRevenue"`
}

// ReportServiceConfig tunes dashboard aggregation
type ReportServiceConfig struct {
	Location          *time.Location
	TopProductsLimit  int
	RecentOrdersLimit int
	CacheTTL          time.Duration
}

// ReportService computes dashboards and reports from persisted orders
type ReportService struct {
	store  *store.Store
	cache  SnapshotCache
	cfg    ReportServiceConfig
	group  singleflight.Group
	logger *zap.Logger
	now    func() time.Time

	// generation counts invalidations; a snapshot computed under an older
	// generation is never written to the cache.
	mu         sync.Mutex
	generation uint64
}

// NewReportService creates a report service. cache may be nil.
func NewReportService(store *store.Store, cache SnapshotCache, cfg ReportServiceConfig) *ReportService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TopProductsLimit <= 0 {
		cfg.TopProductsLimit = 5
	}
	if cfg.RecentOrdersLimit <= 0 {
		cfg.RecentOrdersLimit = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &ReportService{
		store:  store,
		cache:  cache,
		cfg:    cfg,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// GetDashboardSnapshot never fails: when the store is unavailable the
// snapshot comes back zeroed with Degraded set.
func (s *ReportService) GetDashboardSnapshot(ctx context.Context) *DashboardSnapshot {
	ctx, span := util.StartSpan(ctx, "ReportService.GetDashboardSnapshot")
	defer span.End()

	start := time.Now()
	defer func() {
		util.DashboardLatency.Observe(time.Since(start).Seconds())
	}()

	if s.cache != nil {
		var cached DashboardSnapshot
		hit, err := s.cache.GetJSON(ctx, dashboardCacheKey, &cached)
		switch {
		case err != nil:
			util.DashboardCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Dashboard cache read failed", zap.Error(err))
		case hit:
			util.DashboardCacheTotal.WithLabelValues("hit").Inc()
			return &cached
		default:
			util.DashboardCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	v, _, _ := s.group.Do(dashboardCacheKey, func() (interface{}, error) {
		// The call is shared by all waiting callers; none of them cancels it.
		ctx := context.WithoutCancel(ctx)
		gen := s.currentGeneration()
		snap, err := s.computeDashboard(ctx)
		if err != nil {
			util.RecordError(span, err)
			util.DashboardDegradedTotal.Inc()
			s.logger.Error("Dashboard degraded", zap.Error(err))
			return s.degradedSnapshot(err), nil
		}
		s.storeSnapshot(ctx, snap, gen)
		return snap, nil
	})
	return v.(*DashboardSnapshot)
}

// RefreshDashboard recomputes the snapshot and primes the cache. Without a
// cache there is nothing to prime and it does no work.
func (s *ReportService) RefreshDashboard(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	ctx, span := util.StartSpan(ctx, "ReportService.RefreshDashboard")
	defer span.End()

	gen := s.currentGeneration()
	snap, err := s.computeDashboard(ctx)
	if err != nil {
		util.RecordError(span, err)
		return err
	}
	s.storeSnapshot(ctx, snap, gen)
	return nil
}

// InvalidateDashboard drops the cached snapshot
func (s *ReportService) InvalidateDashboard(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	s.group.Forget(dashboardCacheKey)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.cache.Delete(ctx, dashboardCacheKey)
}

// SubscribeTo invalidates the cached snapshot whenever an order changes.
// The returned function removes the subscriptions.
func (s *ReportService) SubscribeTo(bus *eventbus.Bus) func() {
	handler := func(ctx context.Context, _ interface{}) error {
		return s.InvalidateDashboard(ctx)
	}
	unsubs := []func(){
		bus.Subscribe(models.EventTypeSaleCompleted, handler),
		bus.Subscribe(models.EventTypeOrderStatusChanged, handler),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *ReportService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *ReportService) storeSnapshot(ctx context.Context, snap *DashboardSnapshot, gen uint64) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("Dashboard snapshot outdated, not cached")
		return
	}
	if err := s.cache.SetJSON(ctx, dashboardCacheKey, snap, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("Dashboard cache write failed", zap.Error(err))
	}
}

func (s *ReportService) computeDashboard(ctx context.Context) (*DashboardSnapshot, error) {
	loc := s.cfg.Location
	now := s.now().In(loc)

	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	weekStart := startOfWeek(now)
	prevWeekStart := weekStart.AddDate(0, 0, -7)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	prevMonthStart := monthStart.AddDate(0, -1, 0)
	seriesStart := today.AddDate(0, 0, -(trailingDays - 1))

	from := seriesStart
	for _, t := range []time.Time{prevWeekStart, prevMonthStart} {
		if t.Before(from) {
			from = t
		}
	}

	var (
		orders []models.Order
		items  []models.SoldItem
		recent []models.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.store.SalesBetween(gctx, from, tomorrow)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.store.SoldItemsBetween(gctx, seriesStart, tomorrow)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.store.ListOrders(gctx, models.OrderFilter{Limit: s.cfg.RecentOrdersLimit})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &DashboardSnapshot{
		Today:        summarize(orders, today, tomorrow),
		Week:         summarize(orders, weekStart, tomorrow),
		Month:        summarize(orders, monthStart, tomorrow),
		WeekTrend:    periodTrend(orders, weekStart, prevWeekStart, now),
		MonthTrend:   periodTrend(orders, monthStart, prevMonthStart, now),
		TopProducts:  rankByRevenue(aggregateProducts(items), s.cfg.TopProductsLimit),
		RecentOrders: recent,
		DailySales:   dailySeries(orders, seriesStart, tomorrow, loc),
		GeneratedAt:  now,
	}, nil
}

func (s *ReportService) degradedSnapshot(err error) *DashboardSnapshot {
	loc := s.cfg.Location
	now := s.now().In(loc)
	today := startOfDay(now)
	seriesStart := today.AddDate(0, 0, -(trailingDays - 1))

	return &DashboardSnapshot{
		WeekTrend:    computeTrend(decimal.Zero, decimal.Zero),
		MonthTrend:   computeTrend(decimal.Zero, decimal.Zero),
		TopProducts:  []ProductSales{},
		RecentOrders: []models.Order{},
		DailySales:   dailySeries(nil, seriesStart, today.AddDate(0, 0, 1), loc),
		GeneratedAt:  now,
		Degraded:     true,
		Error:        err.Error(),
	}
}

// GetReport aggregates sales between two inclusive calendar dates
func (s *ReportService) GetReport(ctx context.Context, req *ReportRequest) (*SalesReport, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.GetReport")
	defer span.End()

	loc := s.cfg.Location
	start, err := parseDate("startDate", req.StartDate, loc)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("endDate", req.EndDate, loc)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, models.NewValidationError("startDate", "start date %s is after end date %s", req.StartDate, req.EndDate)
	}
	to := end.AddDate(0, 0, 1)
	if days := int(to.Sub(start).Hours()/24 + 0.5); days > maxReportDays {
		return nil, models.NewValidationError("endDate", "range of %d days exceeds the %d day limit", days, maxReportDays)
	}

	var (
		orders []models.Order
		items  []models.SoldItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.store.SalesBetween(gctx, start, to)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.store.SoldItemsBetween(gctx, start, to)
		return err
	})
	if err := g.Wait(); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	summary := summarize(orders, start, to)
	average := decimal.Zero
	if summary.Count > 0 {
		average = summary.Total.Div(decimal.NewFromInt(int64(summary.Count))).Round(2)
	}

	products := aggregateProducts(items)
	return &SalesReport{
		StartDate:         start.Format(dateLayout),
		EndDate:           end.Format(dateLayout),
		Period:            req.Period,
		TotalSales:        summary.Total,
		OrderCount:        summary.Count,
		AverageOrderValue: average,
		DailySales:        dailySeries(orders, start, to, loc),
		PaymentMethods:    paymentBreakdown(orders),
		TopByQuantity:     rankByQuantity(products, reportTopLimit),
		TopByRevenue:      rankByRevenue(products, reportTopLimit),
	}, nil
}

func parseDate(field, raw string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, models.NewValidationError(field, "expected a YYYY-MM-DD date, got %q", raw)
	}
	return t, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday that starts the week containing t.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func summarize(orders []models.Order, from, to time.Time) PeriodSummary {
	sum := PeriodSummary{Total: decimal.Zero}
	for _, o := range orders {
		if o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		sum.Total = sum.Total.Add(o.Total)
		sum.Count++
	}
	return sum
}

// periodTrend compares [start, now) with the same elapsed span measured from
// prevStart. The previous span never runs past start.
func periodTrend(orders []models.Order, start, prevStart, now time.Time) Trend {
	prevEnd := prevStart.Add(now.Sub(start))
	if prevEnd.After(start) {
		prevEnd = start
	}
	return computeTrend(summarize(orders, start, now).Total, summarize(orders, prevStart, prevEnd).Total)
}

func computeTrend(current, previous decimal.Decimal) Trend {
	t := Trend{Current: current, Previous: previous, Direction: TrendNeutral}
	if previous.IsZero() {
		return t
	}
	pct := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2)
	t.Percentage, _ = pct.Float64()
	switch pct.Sign() {
	case 1:
		t.Direction = TrendUp
	case -1:
		t.Direction = TrendDown
	}
	return t
}

func dailySeries(orders []models.Order, from, to time.Time, loc *time.Location) []DailySales {
	index := make(map[string]int)
	series := []DailySales{}
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		index[key] = len(series)
		series = append(series, DailySales{Date: key, Total: decimal.Zero})
	}
	for _, o := range orders {
		i, ok := index[o.CreatedAt.In(loc).Format(dateLayout)]
		if !ok {
			continue
		}
		series[i].Total = series[i].Total.Add(o.Total)
		series[i].Count++
	}
	return series
}

func paymentBreakdown(orders []models.Order) []PaymentBreakdown {
	out := make([]PaymentBreakdown, len(models.PaymentMethods))
	index := make(map[models.PaymentMethod]int, len(models.PaymentMethods))
	for i, m := range models.PaymentMethods {
		out[i] = PaymentBreakdown{Method: m, Total: decimal.Zero}
		index[m] = i
	}
	for _, o := range orders {
		i, ok := index[o.PaymentMethod]
		if !ok {
			continue
		}
		out[i].Count++
		out[i].Total = out[i].Total.Add(o.Total)
	}
	return out
}

func aggregateProducts(items []models.SoldItem) []ProductSales {
	byID := make(map[string]*ProductSales)
	var order []string
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			p = &ProductSales{ProductID: it.ProductID, ProductName: it.ProductName, Revenue: decimal.Zero}
			byID[it.ProductID] = p
			order = append(order, it.ProductID)
		}
		p.Quantity += it.Quantity
		p.Revenue = p.Revenue.Add(it.Subtotal)
	}

	out := make([]ProductSales, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func rankByRevenue(products []ProductSales, limit int) []ProductSales {
	ranked := append([]ProductSales(nil), products...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].Revenue.Cmp(ranked[j].Revenue); c != 0 {
			return c > 0
		}
		if ranked[i].Quantity != ranked[j].Quantity {
			return ranked[i].Quantity > ranked[j].Quantity
		}
		return ranked[i].ProductName < ranked[j].ProductName
	})
	return truncate(ranked, limit)
}

func rankByQuantity(products []ProductSales, limit int) []ProductSales {
	ranked := append([]ProductSales(nil), products...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Quantity != ranked[j].Quantity {
			return ranked[i].Quantity > ranked[j].Quantity
		}
		if c := ranked[i].Revenue.Cmp(ranked[j].Revenue); c != 0 {
			return c > 0
		}
		return ranked[i].ProductName < ranked[j].ProductName
	})
	return truncate(ranked, limit)
}

func truncate(products []ProductSales, limit int) []ProductSales {
	if products == nil {
		return []ProductSales{}
	}
	if limit > 0 && len(products) > limit {
		return products[:limit]
	}
	return products
}
