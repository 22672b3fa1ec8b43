package metrics

import "time"

// Observer mirrors per-crawl events into the process-wide collectors.
type Observer struct{}

// NewObserver initializes the collectors and returns an Observer.
func NewObserver() Observer {
	Init()
	return Observer{}
}

// ObservePage counts a fetched or failed page.
func (Observer) ObservePage(domain string, ok bool, rendered bool, d time.Duration) {
	path := "plain"
	if rendered {
		path = "rendered"
	}
	status := "success"
	if !ok {
		status = "error"
		path = "none"
	}
	crawlerPagesTotal.WithLabelValues(SanitizeSite(domain), status, path).Inc()
	if ok {
		crawlerFetchDurationSeconds.WithLabelValues(path).Observe(d.Seconds())
	}
}

// ObserveProduct counts a product URL.
func (Observer) ObserveProduct(domain string) {
	crawlerProductURLsTotal.WithLabelValues(SanitizeSite(domain)).Inc()
}

// ObserveBatch counts a flush attempt and, on success, its rows.
func (Observer) ObserveBatch(rows int, err error) {
	if err != nil {
		crawlerBatchesTotal.WithLabelValues("error").Inc()
		return
	}
	crawlerBatchesTotal.WithLabelValues("success").Inc()
	crawlerBatchRowsTotal.Add(float64(rows))
}
