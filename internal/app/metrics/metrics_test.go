package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"outlook_service/internal/app/apperr"
)

func TestObserveStore(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveStore("RecordOutlook", "", false, 10*time.Millisecond)
	m.ObserveStore("RecordOutlook", apperr.Conflict, true, time.Millisecond)
	m.ObserveStore("RecordOutlook", "", true, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("RecordOutlook", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("RecordOutlook", string(apperr.Conflict))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("RecordOutlook", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StoreDuration))
}

func TestObserveIngest(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveIngest("outlook", "created")
	m.ObserveIngest("outlook", "created")
	m.ObserveIngest("outlook", "duplicate")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestRecords.WithLabelValues("outlook", "created")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.IngestRecords))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStore("GetProgram", apperr.NotFound, true, time.Second)
		m.ObserveIngest("program", "failed")
	})
}
